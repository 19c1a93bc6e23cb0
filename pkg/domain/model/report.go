package model

import "time"

// UpstreamReport is the outcome of checking a set of packages at once
type UpstreamReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Results     []*UpstreamResult `json:"results"`
	Updates     []*UpstreamResult `json:"updates"`
}

// NewUpstreamReport collects results and the subset with an available update
func NewUpstreamReport(results []*UpstreamResult, at time.Time) *UpstreamReport {
	report := &UpstreamReport{
		GeneratedAt: at.UTC(),
		Results:     make([]*UpstreamResult, 0, len(results)),
		Updates:     []*UpstreamResult{},
	}
	for _, r := range results {
		report.Results = append(report.Results, r)
		if r.Status == UpstreamUpdateAvailable {
			report.Updates = append(report.Updates, r)
		}
	}
	return report
}
