package model

// UpstreamStatus is the outcome of a single upstream check
type UpstreamStatus string

const (
	UpstreamSkipped         UpstreamStatus = "skipped"
	UpstreamUpToDate        UpstreamStatus = "up_to_date"
	UpstreamUpdateAvailable UpstreamStatus = "update_available"
	UpstreamError           UpstreamStatus = "error"
	UpstreamBlocked         UpstreamStatus = "blocked"
)

// Valid reports whether s is one of the known statuses
func (s UpstreamStatus) Valid() bool {
	switch s {
	case UpstreamSkipped, UpstreamUpToDate, UpstreamUpdateAvailable, UpstreamError, UpstreamBlocked:
		return true
	default:
		return false
	}
}

// ExitCode maps the status to the check-upstream process exit code.
// Only an available update is signalled; errors are reported in the result.
func (s UpstreamStatus) ExitCode() int {
	if s == UpstreamUpdateAvailable {
		return 2
	}
	return 0
}

// UpstreamResult is the record printed by an upstream check
type UpstreamResult struct {
	Package  string         `json:"package"`
	Strategy string         `json:"strategy"`
	Current  string         `json:"current"`
	Latest   string         `json:"latest,omitempty"`
	Status   UpstreamStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	Source   string         `json:"source,omitempty"`
}

// UpdateEntry is one detected update fed back into container metadata
type UpdateEntry struct {
	Package              string `json:"package"`
	Latest               string `json:"latest"`
	IcebergRuntimeFlavor string `json:"iceberg_runtime_flavor,omitempty"`
	IcebergVersion       string `json:"iceberg_version,omitempty"`
}
