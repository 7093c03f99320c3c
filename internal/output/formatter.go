package output

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/buemura/scanhub/pkg/types"
)

// Formatter renders scan jobs to a writer.
type Formatter interface {
	// FormatScan renders one job. vulns holds the owner's stored
	// vulnerability records and is nil for other callers.
	FormatScan(w io.Writer, job *types.ScanJob, vulns []types.Vulnerability) error
	FormatList(w io.Writer, jobs []*types.ScanJob) error
}

// GetFormatter returns the appropriate formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, markdown)", format)
	}
}

// sortedFindings returns the job's findings, most severe first.
func sortedFindings(job *types.ScanJob) []types.Finding {
	if job.Results == nil {
		return nil
	}
	findings := append([]types.Finding(nil), job.Results.Vulnerabilities...)
	sort.SliceStable(findings, func(i, j int) bool {
		return types.SeverityRank(findings[i].Severity) < types.SeverityRank(findings[j].Severity)
	})
	return findings
}

func findingCount(job *types.ScanJob) string {
	if job.Results == nil {
		return "-"
	}
	return fmt.Sprint(job.Results.Summary.TotalVulnerabilities)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func summaryLine(c types.SeverityCounts) string {
	return fmt.Sprintf("%d findings (%d critical, %d high, %d medium, %d low, %d info)",
		c.Total(), c.Critical, c.High, c.Medium, c.Low, c.Info)
}
