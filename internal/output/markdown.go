package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/buemura/scanhub/pkg/types"
)

// MarkdownFormatter renders jobs as Markdown tables suitable for
// pasting into docs, issues, or pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatScan(w io.Writer, job *types.ScanJob, vulns []types.Vulnerability) error {
	fmt.Fprintf(w, "## Scan #%d: %s\n\n", job.ID, escapeMarkdown(job.TargetURL))
	fmt.Fprintf(w, "- Type: %s\n- Status: %s\n- Started: %s\n- Ended: %s\n",
		job.ScanType, job.Status, formatTime(&job.StartTime), formatTime(job.EndTime))

	if job.Results == nil {
		return nil
	}

	findings := sortedFindings(job)
	if len(findings) == 0 {
		fmt.Fprintln(w, "\n_No findings._")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Severity | Type | Location | Description |")
	fmt.Fprintln(w, "|----------|------|----------|-------------|")
	for _, finding := range findings {
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			severityBadge(finding.Severity),
			escapeMarkdown(finding.Type),
			escapeMarkdown(finding.Location),
			escapeMarkdown(finding.Description))
	}

	fmt.Fprintf(w, "\n**Summary:** %s\n", summaryLine(job.Results.Summary.VulnerabilitiesBySeverity))
	return nil
}

func (f *MarkdownFormatter) FormatList(w io.Writer, jobs []*types.ScanJob) error {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "_No scans._")
		return nil
	}

	fmt.Fprintln(w, "| ID | Target | Type | Status | Findings |")
	fmt.Fprintln(w, "|----|--------|------|--------|----------|")
	for _, job := range jobs {
		fmt.Fprintf(w, "| %d | %s | %s | %s | %s |\n",
			job.ID, escapeMarkdown(job.TargetURL), job.ScanType, job.Status, findingCount(job))
	}
	return nil
}

// severityBadge returns a bold severity label for Markdown.
func severityBadge(s types.Severity) string {
	return fmt.Sprintf("**%s**", string(s))
}

// escapeMarkdown escapes pipe characters that would break Markdown tables.
func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
