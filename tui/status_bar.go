// ABOUTME: Implements a single-line status bar for the bottom of the TUI showing canvas status.
// ABOUTME: Displays canvas name, node and edge counts, active generations, undo/redo availability, and the last notice.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel displays canvas status in a single line.
type StatusBarModel struct {
	canvasName string
	nodes      int
	edges      int
	generating int
	canUndo    bool
	canRedo    bool
	notice     string
	width      int
}

// NewStatusBarModel creates a new StatusBarModel with the given canvas name.
func NewStatusBarModel(canvasName string) StatusBarModel {
	return StatusBarModel{canvasName: canvasName}
}

// SetState updates counts from a store snapshot.
func (m *StatusBarModel) SetState(s canvas.State) {
	m.nodes = len(s.Nodes)
	m.edges = len(s.Edges)
	m.canUndo = s.CanUndo
	m.canRedo = s.CanRedo
	m.generating = 0
	for _, n := range s.Nodes {
		if StatusOf(n) == NodeGenerating {
			m.generating++
		}
	}
}

// SetNotice shows a short message, such as a rejected operation.
func (m *StatusBarModel) SetNotice(s string) {
	m.notice = s
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	var history []string
	if m.canUndo {
		history = append(history, "undo")
	}
	if m.canRedo {
		history = append(history, "redo")
	}
	hist := "-"
	if len(history) > 0 {
		hist = strings.Join(history, "/")
	}

	content := fmt.Sprintf("Canvas: %s | %d nodes, %d edges | Generating: %d | History: %s",
		m.canvasName, m.nodes, m.edges, m.generating, hist)
	if m.notice != "" {
		content += " | " + m.notice
	}

	style := StatusBarStyle.Width(m.width)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
