package views

import (
	"testing"

	"github.com/buemura/scanhub/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []ScanTypeItem {
	return []ScanTypeItem{
		{Type: types.ScanTypeQuick, Description: "about 3s, 1-3 findings"},
		{Type: types.ScanTypeDeep, Description: "about 8s, 3-8 findings"},
	}
}

func keyRune(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func TestMenuModelNavigate(t *testing.T) {
	m := NewMenuModel(testItems())
	assert.Equal(t, 0, m.Cursor())

	// Should not go above the first item.
	updated, _ := m.Update(keyRune("k"))
	m = updated.(MenuModel)
	assert.Equal(t, 0, m.Cursor())

	updated, _ = m.Update(keyRune("j"))
	m = updated.(MenuModel)
	assert.Equal(t, 1, m.Cursor())

	// Should not go past the end.
	updated, _ = m.Update(keyRune("j"))
	m = updated.(MenuModel)
	assert.Equal(t, 1, m.Cursor())
}

func TestMenuModelSelected(t *testing.T) {
	m := NewMenuModel(testItems())

	selected := m.Selected()
	require.NotNil(t, selected)
	assert.Equal(t, types.ScanTypeQuick, selected.Type)

	updated, _ := m.Update(keyRune("j"))
	m = updated.(MenuModel)
	selected = m.Selected()
	require.NotNil(t, selected)
	assert.Equal(t, types.ScanTypeDeep, selected.Type)
}

func TestMenuModelSelectedEmpty(t *testing.T) {
	assert.Nil(t, NewMenuModel(nil).Selected())
}

func TestMenuModelView(t *testing.T) {
	view := NewMenuModel(testItems()).View()

	assert.Contains(t, view, "scanhub")
	assert.Contains(t, view, "quick")
	assert.Contains(t, view, "3-8 findings")
	assert.Contains(t, view, "navigate")
}

func TestMenuModelQuit(t *testing.T) {
	_, cmd := NewMenuModel(testItems()).Update(keyRune("q"))
	require.NotNil(t, cmd)
}
