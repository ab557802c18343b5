package scan

import (
	"time"

	"github.com/fulmenhq/preflight/pkg/findings"
)

// Report is the outcome of one scan. Findings are ranked.
type Report struct {
	ID               string                    `json:"id"`
	Target           string                    `json:"target"`
	StartedAt        time.Time                 `json:"started_at"`
	Duration         time.Duration             `json:"duration"`
	FilesScanned     int                       `json:"files_scanned"`
	NetworkAudit     bool                      `json:"network_audit"`
	DependencySource string                    `json:"dependency_source,omitempty"`
	DependencyCount  int                       `json:"dependency_count"`
	Findings         []findings.Finding        `json:"findings"`
	Counts           map[findings.Severity]int `json:"counts"`
}

// FailsAt reports whether any finding meets threshold.
func (r *Report) FailsAt(threshold findings.Severity) bool {
	return findings.AnyAtLeast(r.Findings, threshold)
}

// Highest returns the most severe finding level, or "" when there are none.
func (r *Report) Highest() findings.Severity {
	if len(r.Findings) == 0 {
		return ""
	}
	return r.Findings[0].Severity
}
