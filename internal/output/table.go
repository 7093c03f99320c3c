package output

import (
	"fmt"
	"io"

	"github.com/buemura/scanhub/pkg/types"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders jobs as colored terminal tables.
type TableFormatter struct{}

func (f *TableFormatter) FormatScan(w io.Writer, job *types.ScanJob, vulns []types.Vulnerability) error {
	fmt.Fprintf(w, "\nScan #%d %s (%s) %s\n", job.ID, job.TargetURL, job.ScanType, colorStatus(job.Status))
	fmt.Fprintf(w, "  Started: %s  Ended: %s\n", formatTime(&job.StartTime), formatTime(job.EndTime))

	if job.Results == nil {
		return nil
	}

	findings := sortedFindings(job)
	if len(findings) == 0 {
		fmt.Fprintln(w, "  No findings.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Type", "Location", "Description"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")
	for _, finding := range findings {
		table.Append([]string{colorSeverity(finding.Severity), finding.Type, finding.Location, finding.Description})
	}
	table.Render()

	fmt.Fprintf(w, "  Summary: %s\n", summaryLine(job.Results.Summary.VulnerabilitiesBySeverity))
	if vulns != nil {
		fmt.Fprintf(w, "  Stored vulnerability records: %d\n", len(vulns))
	}
	return nil
}

func (f *TableFormatter) FormatList(w io.Writer, jobs []*types.ScanJob) error {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scans.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Target", "Type", "Status", "Started", "Findings"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")
	for _, job := range jobs {
		table.Append([]string{
			fmt.Sprint(job.ID),
			job.TargetURL,
			string(job.ScanType),
			colorStatus(job.Status),
			formatTime(&job.StartTime),
			findingCount(job),
		})
	}
	table.Render()
	return nil
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return color.RedString("CRITICAL")
	case types.SeverityHigh:
		return color.RedString("HIGH")
	case types.SeverityMedium:
		return color.YellowString("MEDIUM")
	case types.SeverityLow:
		return color.CyanString("LOW")
	case types.SeverityInfo:
		return color.WhiteString("INFO")
	default:
		return string(s)
	}
}

func colorStatus(s types.JobStatus) string {
	switch s {
	case types.StatusCompleted:
		return color.GreenString(string(s))
	case types.StatusFailed:
		return color.RedString(string(s))
	case types.StatusInProgress:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
