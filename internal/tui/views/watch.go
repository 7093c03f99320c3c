package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buemura/scanhub/internal/client"
	"github.com/buemura/scanhub/internal/tui/styles"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusFunc fetches the current view of a scan.
type StatusFunc func(ctx context.Context, id int64) (*client.ScanView, error)

// ScanFinishedMsg is sent once a watched scan reaches a terminal status.
type ScanFinishedMsg struct {
	View *client.ScanView
}

type statusMsg struct {
	view *client.ScanView
}

type pollErrorMsg struct {
	err error
}

// WatchModel polls a submitted scan and shows its progress.
type WatchModel struct {
	spinner  spinner.Model
	fetch    StatusFunc
	interval time.Duration
	id       int64
	target   string
	status   types.JobStatus
	err      string
}

// NewWatchModel watches scan id on target, polling every interval.
func NewWatchModel(fetch StatusFunc, id int64, target string, interval time.Duration) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.ColorAccent)

	return WatchModel{
		spinner:  sp,
		fetch:    fetch,
		interval: interval,
		id:       id,
		target:   target,
		status:   types.StatusPending,
	}
}

// Init starts the spinner and the first poll.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(0))
}

// Update handles spinner ticks and poll results.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = msg.view.Status
		m.err = ""
		if m.status.IsTerminal() {
			view := msg.view
			return m, func() tea.Msg { return ScanFinishedMsg{View: view} }
		}
		return m, m.poll(m.interval)

	case pollErrorMsg:
		// Keep polling; the server may be restarting.
		m.err = msg.err.Error()
		return m, m.poll(m.interval)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the scan progress.
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("scanhub: scan #%d", m.id)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), styles.StatusStyle(m.status).Render(string(m.status)))
	fmt.Fprintf(&b, "  Target: %s\n", m.target)

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render("poll failed: " + m.err))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("ctrl+c quit"))
	return b.String()
}

// Status returns the last polled status.
func (m WatchModel) Status() types.JobStatus {
	return m.status
}

func (m WatchModel) poll(after time.Duration) tea.Cmd {
	fetch, id := m.fetch, m.id
	do := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		view, err := fetch(ctx, id)
		if err != nil {
			return pollErrorMsg{err: err}
		}
		return statusMsg{view: view}
	}
	if after <= 0 {
		return do
	}
	return tea.Tick(after, func(time.Time) tea.Msg { return do() })
}
