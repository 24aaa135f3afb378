// ABOUTME: Implements a scrollable event log panel using the bubbles viewport component.
// ABOUTME: Displays canvas events and controller notices with color-coded formatting.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// LogEntry is one line of the event log: a store event or a free-form notice.
type LogEntry struct {
	Time   time.Time
	Event  canvas.Event
	Notice string
	Failed bool
}

// LogPanelModel is a scrollable event log.
type LogPanelModel struct {
	entries  []LogEntry
	max      int
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewLogPanelModel creates a new log panel with a maximum number of entries.
// If maxEntries is <= 0, it defaults to 200.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	vp := viewport.New(80, 10)
	return LogPanelModel{
		entries:  make([]LogEntry, 0, maxEntries),
		max:      maxEntries,
		viewport: vp,
	}
}

// Append adds an entry to the log, evicting the oldest entry if at capacity.
func (m *LogPanelModel) Append(e LogEntry) {
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, e)
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetFocused sets whether this panel accepts keyboard input.
func (m *LogPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// IsFocused returns whether the panel is focused.
func (m LogPanelModel) IsFocused() bool {
	return m.focused
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Border takes two lines and two columns, the title one line.
	m.viewport.Width = max(1, w-2)
	m.viewport.Height = max(1, h-3)
	m.syncViewport()
}

// ScrollUp and ScrollDown move the viewport when the panel is focused.
func (m *LogPanelModel) ScrollUp()   { m.viewport.ScrollUp(1) }
func (m *LogPanelModel) ScrollDown() { m.viewport.ScrollDown(1) }

// View renders the log panel.
func (m LogPanelModel) View() string {
	title := "EVENT LOG"
	if m.focused {
		title = "EVENT LOG (focused)"
	}

	content := "No events yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}

	return BorderStyle.
		Width(max(1, m.width-2)).
		Height(max(1, m.height-2)).
		Render(TitleStyle.Render(title) + "\n" + content)
}

// syncViewport rebuilds the viewport content from entries and scrolls to the bottom.
func (m *LogPanelModel) syncViewport() {
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		lines = append(lines, formatEntry(e))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single log entry as one line.
func formatEntry(e LogEntry) string {
	ts := LogTimestampStyle.Render(e.Time.Format("15:04:05"))
	if e.Notice != "" {
		st := LogEventStyle
		if e.Failed {
			st = LogErrorStyle
		}
		return ts + " " + st.Render(e.Notice)
	}

	parts := []string{ts, eventStyle(e.Event.Kind).Render(string(e.Event.Kind))}
	if len(e.Event.NodeIDs) > 0 {
		parts = append(parts, fmt.Sprintf("nodes=%s", strings.Join(shortIDs(e.Event.NodeIDs), ",")))
	}
	if len(e.Event.EdgeIDs) > 0 {
		parts = append(parts, fmt.Sprintf("edges=%d", len(e.Event.EdgeIDs)))
	}
	if len(e.Event.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("removed=%s", strings.Join(shortIDs(e.Event.Removed), ",")))
	}
	return strings.Join(parts, " ")
}

// shortIDs keeps log lines readable; ids are UUIDs.
func shortIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if len(id) > 8 {
			id = id[:8]
		}
		out[i] = id
	}
	return out
}

// eventStyle returns the appropriate lipgloss style for a given event kind.
func eventStyle(kind canvas.EventKind) lipgloss.Style {
	switch kind {
	case canvas.EventNodeRemoved, canvas.EventEdgeRemoved:
		return LogErrorStyle
	case canvas.EventGenerationChanged, canvas.EventLoaded:
		return LogSuccessStyle
	default:
		return LogEventStyle
	}
}
