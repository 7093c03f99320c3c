package views

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/buemura/scanhub/internal/client"
	"github.com/buemura/scanhub/internal/tui/styles"
	"github.com/buemura/scanhub/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// ResultsModel is the view model for a finished scan.
type ResultsModel struct {
	view      *client.ScanView
	findings  []types.Finding
	cursor    int
	offset    int
	maxRows   int
	exported  string
	exportErr string
}

// NewResultsModel creates a results view for a finished scan.
func NewResultsModel(view *client.ScanView) ResultsModel {
	var findings []types.Finding
	if view.Results != nil {
		findings = append(findings, view.Results.Vulnerabilities...)
		sort.SliceStable(findings, func(i, j int) bool {
			return types.SeverityRank(findings[i].Severity) < types.SeverityRank(findings[j].Severity)
		})
	}
	return ResultsModel{view: view, findings: findings, maxRows: 20}
}

// Init returns nil (no initial command).
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles key events for scrolling and export.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.findings)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.maxRows {
					m.offset = m.cursor - m.maxRows + 1
				}
			}
		case "e":
			m.exportJSON()
		case "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the findings table.
func (m ResultsModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("scanhub: scan #%d results", m.view.ID)))
	b.WriteString("\n\n")

	if m.view.Status == types.StatusFailed {
		b.WriteString(styles.ErrorStyle.Render("Scan failed. No results were recorded."))
		b.WriteString("\n")
	} else if len(m.findings) == 0 {
		b.WriteString("No findings discovered.\n")
	} else {
		b.WriteString(m.summaryLine())
		b.WriteString("\n\n")

		header := fmt.Sprintf("  %-10s %-24s %s", "SEVERITY", "TYPE", "LOCATION")
		b.WriteString(styles.HeaderStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", 80))
		b.WriteString("\n")

		end := m.offset + m.maxRows
		if end > len(m.findings) {
			end = len(m.findings)
		}
		for i := m.offset; i < end; i++ {
			f := m.findings[i]
			cursor := "  "
			if i == m.cursor {
				cursor = styles.CursorStyle.Render("> ")
			}
			severity := styles.SeverityStyle(f.Severity).Render(fmt.Sprintf("%-10s", f.Severity))
			fmt.Fprintf(&b, "%s%s %-24s %s\n", cursor, severity, truncate(f.Type, 24), styles.HelpStyle.Render(f.Location))
		}

		if len(m.findings) > m.maxRows {
			fmt.Fprintf(&b, "\n  Showing %d-%d of %d findings\n", m.offset+1, end, len(m.findings))
		}

		b.WriteString("\n")
		b.WriteString(m.detailView(m.findings[m.cursor]))
	}

	if m.exported != "" {
		b.WriteString("\n")
		b.WriteString(styles.SelectedStyle.Render("Results exported to " + m.exported))
	}
	if m.exportErr != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.exportErr))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ scroll • e export JSON • esc new scan • q quit"))
	return b.String()
}

func (m ResultsModel) summaryLine() string {
	counts := m.view.Results.Summary.VulnerabilitiesBySeverity
	byLevel := map[types.Severity]int{
		types.SeverityCritical: counts.Critical,
		types.SeverityHigh:     counts.High,
		types.SeverityMedium:   counts.Medium,
		types.SeverityLow:      counts.Low,
		types.SeverityInfo:     counts.Info,
	}

	var parts []string
	for _, sev := range types.Severities {
		if c := byLevel[sev]; c > 0 {
			parts = append(parts, styles.SeverityStyle(sev).Render(fmt.Sprintf("%s: %d", sev, c)))
		}
	}
	return fmt.Sprintf("Total: %d findings  [%s]", m.view.Results.Summary.TotalVulnerabilities, strings.Join(parts, "  "))
}

func (m ResultsModel) detailView(f types.Finding) string {
	var b strings.Builder
	b.WriteString(styles.BorderStyle.Render(
		fmt.Sprintf("Type: %s\nSeverity: %s\nLocation: %s\nDescription: %s",
			f.Type, f.Severity, f.Location, f.Description),
	))
	if f.Details.Explanation != "" {
		fmt.Fprintf(&b, "\n  Explanation: %s", f.Details.Explanation)
	}
	if f.Details.Recommendation != "" {
		fmt.Fprintf(&b, "\n  Recommendation: %s", f.Details.Recommendation)
	}
	return b.String()
}

func (m *ResultsModel) exportJSON() {
	data, err := json.MarshalIndent(m.view, "", "  ")
	if err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	name := fmt.Sprintf("scanhub-scan-%d.json", m.view.ID)
	if err := os.WriteFile(name, data, 0644); err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}
	m.exported = name
	m.exportErr = ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
