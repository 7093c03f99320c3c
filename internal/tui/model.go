package tui

import (
	"context"
	"time"

	"github.com/buemura/scanhub/internal/client"
	"github.com/buemura/scanhub/internal/tui/views"
	"github.com/buemura/scanhub/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// Backend is the part of the API client the TUI drives.
type Backend interface {
	Submit(ctx context.Context, targetURL, scanType string) (*client.Submission, error)
	Status(ctx context.Context, id int64) (*client.ScanView, error)
}

// appState represents which view is currently active.
type appState int

const (
	stateMenu     appState = iota // Scan type selection
	stateTarget                   // Target URL input
	stateWatching                 // Polling a submitted scan
	stateResults                  // Results display
)

// submittedMsg carries the outcome of a submission.
type submittedMsg struct {
	submission *client.Submission
	target     string
	err        error
}

// Model is the root Bubble Tea model that manages view transitions.
type Model struct {
	state    appState
	backend  Backend
	interval time.Duration
	width    int
	height   int

	// Sub-models for each view.
	menu    views.MenuModel
	target  views.TargetModel
	watch   views.WatchModel
	results views.ResultsModel
}

var scanTypeItems = []views.ScanTypeItem{
	{Type: types.ScanTypeQuick, Description: "a few seconds, 1-3 findings"},
	{Type: types.ScanTypeDeep, Description: "longer, 3-8 findings"},
}

// NewModel creates a root model that submits through backend and polls
// every interval.
func NewModel(backend Backend, interval time.Duration) Model {
	return Model{
		state:    stateMenu,
		backend:  backend,
		interval: interval,
		menu:     views.NewMenuModel(scanTypeItems),
		target:   views.NewTargetModel(types.ScanTypeQuick),
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.target.Init()
}

// Update handles messages and manages state transitions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			return m.handleBack()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	switch m.state {
	case stateMenu:
		return m.updateMenu(msg)
	case stateTarget:
		return m.updateTarget(msg)
	case stateWatching:
		return m.updateWatch(msg)
	case stateResults:
		return m.updateResults(msg)
	}

	return m, nil
}

// View renders the current view.
func (m Model) View() string {
	switch m.state {
	case stateMenu:
		return m.menu.View()
	case stateTarget:
		return m.target.View()
	case stateWatching:
		return m.watch.View()
	case stateResults:
		return m.results.View()
	}
	return ""
}

func (m Model) handleBack() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateTarget, stateResults:
		m.state = stateMenu
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if selected := m.menu.Selected(); selected != nil {
			m.target = views.NewTargetModel(selected.Type)
			m.state = stateTarget
			return m, m.target.Init()
		}
	}

	updated, cmd := m.menu.Update(msg)
	m.menu = updated.(views.MenuModel)
	return m, cmd
}

func (m Model) updateTarget(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sub, ok := msg.(submittedMsg); ok {
		if sub.err != nil {
			m.target.SetError(sub.err)
			return m, nil
		}
		m.watch = views.NewWatchModel(m.backend.Status, sub.submission.ID, sub.target, m.interval)
		m.state = stateWatching
		return m, m.watch.Init()
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if target, err := m.target.ValidatedTarget(); err == nil {
			return m, m.submit(target.URL, m.target.ScanType())
		}
	}

	updated, cmd := m.target.Update(msg)
	m.target = updated.(views.TargetModel)
	return m, cmd
}

func (m Model) updateWatch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(views.ScanFinishedMsg); ok {
		m.results = views.NewResultsModel(done.View)
		m.state = stateResults
		return m, nil
	}

	updated, cmd := m.watch.Update(msg)
	m.watch = updated.(views.WatchModel)
	return m, cmd
}

func (m Model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.results.Update(msg)
	m.results = updated.(views.ResultsModel)
	return m, cmd
}

func (m Model) submit(targetURL string, scanType types.ScanType) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sub, err := backend.Submit(ctx, targetURL, string(scanType))
		return submittedMsg{submission: sub, target: targetURL, err: err}
	}
}
