// ABOUTME: FieldEditorModel edits one authored field of the selected node in a text input dialog.
// ABOUTME: Picks the field by category: text content, image URL, or a generator's model id.
package tui

import (
	"fmt"

	"github.com/2389-research/flowcanvas/graph"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// FieldEditorModel renders a text input for a single node field. While it
// is active the controller must be told a text field has focus.
type FieldEditorModel struct {
	textInput textinput.Model
	nodeID    string
	field     string
	active    bool
}

// NewFieldEditorModel creates an inactive editor.
func NewFieldEditorModel() FieldEditorModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 4096
	return FieldEditorModel{textInput: ti}
}

// editableField returns the field name and current value edited for n.
func editableField(n graph.Node) (string, string, bool) {
	switch {
	case n.Category == graph.CategoryText:
		return "content", n.Data.Content, true
	case n.Category == graph.CategoryImage:
		return "imageUrl", n.Data.ImageURL, true
	case graph.IsGenerator(n.Category):
		return "modelId", n.Data.ModelID, true
	}
	return "", "", false
}

// Open starts editing n. Reports false when n has no editable field.
func (m *FieldEditorModel) Open(n graph.Node) bool {
	field, value, ok := editableField(n)
	if !ok {
		return false
	}
	m.nodeID = n.ID
	m.field = field
	m.active = true
	m.textInput.Placeholder = field
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.textInput.Focus()
	return true
}

// Submit closes the editor and returns the node id and patch to apply.
func (m *FieldEditorModel) Submit() (string, graph.DataPatch) {
	value := m.textInput.Value()
	var patch graph.DataPatch
	switch m.field {
	case "content":
		patch.Content = &value
	case "imageUrl":
		patch.ImageURL = &value
	case "modelId":
		patch.ModelID = &value
	}
	id := m.nodeID
	m.Cancel()
	return id, patch
}

// Cancel closes the editor without applying anything.
func (m *FieldEditorModel) Cancel() {
	m.active = false
	m.nodeID = ""
	m.field = ""
	m.textInput.Reset()
	m.textInput.Blur()
}

// IsActive returns whether the editor dialog is visible.
func (m *FieldEditorModel) IsActive() bool {
	return m.active
}

// Update forwards key events to the embedded textinput.
func (m FieldEditorModel) Update(msg tea.Msg) FieldEditorModel {
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	_ = cmd // cursor blink commands are not needed in a sub-model
	return m
}

// View renders the dialog. Returns an empty string when inactive.
func (m FieldEditorModel) View() string {
	if !m.active {
		return ""
	}
	return EditStyle.Render(fmt.Sprintf("Edit %s (enter to apply, esc to cancel)\n\n%s", m.field, m.textInput.View()))
}
