package types

import (
	"fmt"
	"time"
)

// VulnerabilityDetails is the structured explanation attached to a finding.
type VulnerabilityDetails struct {
	DiscoveredAt   time.Time `json:"discoveredAt"`
	Explanation    string    `json:"explanation"`
	Recommendation string    `json:"recommendation"`
}

// Finding is a single discovered issue as embedded in a job's results.
type Finding struct {
	Type        string               `json:"type"`
	Severity    Severity             `json:"severity"`
	Description string               `json:"description"`
	Location    string               `json:"location"`
	Details     VulnerabilityDetails `json:"details"`
}

// Vulnerability converts the finding into a record owned by scanID.
func (f Finding) Vulnerability(scanID int64) Vulnerability {
	return Vulnerability{
		ScanID:      scanID,
		Type:        f.Type,
		Severity:    f.Severity,
		Description: f.Description,
		Location:    f.Location,
		Details:     f.Details,
	}
}

// ResultSummary aggregates the findings of a completed scan.
type ResultSummary struct {
	TargetURL                 string         `json:"targetUrl"`
	ScanType                  ScanType       `json:"scanType"`
	CompletedAt               time.Time      `json:"completedAt"`
	VulnerabilitiesBySeverity SeverityCounts `json:"vulnerabilitiesBySeverity"`
	TotalVulnerabilities      int            `json:"totalVulnerabilities"`
}

// ScanResults is the payload attached to a job when it completes.
type ScanResults struct {
	Summary         ResultSummary `json:"summary"`
	Vulnerabilities []Finding     `json:"vulnerabilities"`
}

// NewScanResults builds a results payload whose summary is derived from findings.
func NewScanResults(targetURL string, scanType ScanType, completedAt time.Time, findings []Finding) (*ScanResults, error) {
	var counts SeverityCounts
	for _, f := range findings {
		if err := counts.Add(f.Severity); err != nil {
			return nil, fmt.Errorf("finding %q: %w", f.Type, err)
		}
	}
	vulns := make([]Finding, len(findings))
	copy(vulns, findings)
	return &ScanResults{
		Summary: ResultSummary{
			TargetURL:                 targetURL,
			ScanType:                  scanType,
			CompletedAt:               completedAt,
			VulnerabilitiesBySeverity: counts,
			TotalVulnerabilities:      len(vulns),
		},
		Vulnerabilities: vulns,
	}, nil
}

// Clone returns a copy whose findings slice is not shared.
func (r *ScanResults) Clone() *ScanResults {
	if r == nil {
		return nil
	}
	c := *r
	c.Vulnerabilities = make([]Finding, len(r.Vulnerabilities))
	copy(c.Vulnerabilities, r.Vulnerabilities)
	return &c
}
