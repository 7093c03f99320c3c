package views

import (
	"fmt"
	"strings"

	"github.com/buemura/scanhub/internal/tui/styles"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TargetModel is the view model for the target URL input.
type TargetModel struct {
	textInput textinput.Model
	scanType  types.ScanType
	err       string
}

// NewTargetModel creates a target input for the given scan type.
func NewTargetModel(scanType types.ScanType) TargetModel {
	ti := textinput.New()
	ti.Placeholder = "https://example.com"
	ti.Focus()
	ti.CharLimit = 2048
	ti.Width = 50
	ti.PromptStyle = styles.CursorStyle
	ti.TextStyle = styles.SelectedStyle

	return TargetModel{textInput: ti, scanType: scanType}
}

// ScanType returns the scan type chosen in the menu.
func (m TargetModel) ScanType() types.ScanType {
	return m.scanType
}

// Init returns the text input blink command.
func (m TargetModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events. Enter validates without leaving the view;
// the parent model reads ValidatedTarget.
func (m TargetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if _, err := m.ValidatedTarget(); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.err = ""
	return m, cmd
}

// SetError shows err under the input, e.g. a server-side rejection.
func (m *TargetModel) SetError(err error) {
	m.err = err.Error()
}

// View renders the target input form.
func (m TargetModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("scanhub: new scan"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("Scan type: %s", m.scanType)))
	b.WriteString("\n")
	b.WriteString("Enter target URL:\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("enter submit • esc back"))
	return b.String()
}

// ValidatedTarget parses the input, or returns why it is not a valid URL.
func (m TargetModel) ValidatedTarget() (types.Target, error) {
	value := strings.TrimSpace(m.textInput.Value())
	if value == "" {
		return types.Target{}, fmt.Errorf("target URL is required")
	}
	return types.ParseTarget(value)
}
