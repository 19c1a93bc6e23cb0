package usecase

var (
	TestEnv         = testEnv
	IndexCandidates = indexCandidates
)
