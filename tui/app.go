// ABOUTME: Top-level Bubble Tea AppModel hosting the canvas controller with detail, log, help, and status panels.
// ABOUTME: Implements tea.Model (Init, Update, View) and routes mouse and key input to the controller.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/controller"
	"github.com/2389-research/flowcanvas/generation"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// FocusTarget indicates which panel currently has keyboard focus.
type FocusTarget int

const (
	FocusCanvas FocusTarget = iota
	FocusLog
)

const tickInterval = 100 * time.Millisecond

// AppModel is the top-level Bubble Tea model. The canvas occupies the top
// left of the screen at cell (0, 0), so mouse coordinates reach the
// controller unchanged.
type AppModel struct {
	store *canvas.Store
	ctl   *controller.Controller

	detail    DetailPanelModel
	log       LogPanelModel
	statusBar StatusBarModel
	editor    FieldEditorModel
	help      help.Model

	events  <-chan canvas.Event
	focus   FocusTarget
	spinner int
	width   int
	height  int
	now     func() time.Time
}

// NewAppModel creates an AppModel over store. events usually comes from an EventBridge.
func NewAppModel(store *canvas.Store, ctl *controller.Controller, name string, events <-chan canvas.Event) AppModel {
	m := AppModel{
		store:     store,
		ctl:       ctl,
		detail:    NewDetailPanelModel(),
		log:       NewLogPanelModel(200),
		statusBar: NewStatusBarModel(name),
		editor:    NewFieldEditorModel(),
		help:      help.New(),
		events:    events,
		focus:     FocusCanvas,
		now:       time.Now,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(WaitForEventCmd(m.events), TickCmd(tickInterval))
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case CanvasEventMsg:
		m.log.Append(LogEntry{Time: m.now(), Event: msg.Event})
		m.refresh()
		return m, WaitForEventCmd(m.events)

	case TickMsg:
		m.spinner++
		m.refresh()
		return m, TickCmd(tickInterval)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// canvasSize returns the cell area given to the canvas.
func (m AppModel) canvasSize() (int, int) {
	return m.width - m.sidebarWidth(), max(1, m.height-2)
}

func (m AppModel) sidebarWidth() int {
	return min(50, max(30, m.width*35/100))
}

func (m AppModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.editor.IsActive() {
		return m, nil
	}
	w, h := m.canvasSize()
	// Releases outside the canvas still end a drag.
	if msg.Action != tea.MouseActionRelease && (msg.X >= w || msg.Y >= h) {
		return m, nil
	}
	m.note(m.ctl.HandleMouse(msg))
	m.refresh()
	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.editor.IsActive() {
		switch msg.Type {
		case tea.KeyEnter:
			id, patch := m.editor.Submit()
			m.ctl.SetEditing(false)
			if !m.store.UpdateNode(id, patch) {
				m.notice("nothing to update", false)
			}
		case tea.KeyEsc:
			m.editor.Cancel()
			m.ctl.SetEditing(false)
		default:
			m.editor = m.editor.Update(msg)
		}
		m.refresh()
		return m, nil
	}

	_, menuOpen := m.ctl.Menu()
	if !menuOpen {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "tab":
			m.focus = m.nextFocus()
			m.log.SetFocused(m.focus == FocusLog)
			return m, nil
		case "e":
			if n, ok := m.selected(); ok && m.editor.Open(n) {
				m.ctl.SetEditing(true)
			}
			return m, nil
		}
		if m.focus == FocusLog {
			switch msg.String() {
			case "up", "k":
				m.log.ScrollUp()
			case "down", "j":
				m.log.ScrollDown()
			}
			return m, nil
		}
	}

	m.note(m.ctl.HandleKey(msg))
	m.refresh()
	return m, nil
}

// nextFocus cycles the focus target between canvas and log.
func (m AppModel) nextFocus() FocusTarget {
	if m.focus == FocusCanvas {
		return FocusLog
	}
	return FocusCanvas
}

func (m *AppModel) note(a controller.Action) {
	switch a.Kind {
	case controller.ActionRejected:
		m.notice("rejected", true)
	case controller.ActionSubmit:
		m.notice("generating into "+strings.Join(shortIDs([]string{a.NodeID}), ""), false)
	case controller.ActionCancel:
		if a.NodeID != "" {
			m.notice("generation cancelled", false)
		}
	}
}

func (m *AppModel) notice(s string, failed bool) {
	m.statusBar.SetNotice(s)
	m.log.Append(LogEntry{Time: m.now(), Notice: s, Failed: failed})
}

func (m AppModel) selected() (graph.Node, bool) {
	state := m.store.GetState()
	if state.Selection == "" {
		return graph.Node{}, false
	}
	return state.Node(state.Selection)
}

// refresh pulls a fresh state into the panels.
func (m *AppModel) refresh() {
	state := m.store.GetState()
	m.statusBar.SetState(state)
	if n, ok := state.Node(state.Selection); ok {
		m.detail.SetNode(&n)
	} else {
		m.detail.SetNode(nil)
	}
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 60 || m.height < 12 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 60x12.", m.width, m.height)
	}

	cw, ch := m.canvasSize()
	side := m.sidebarWidth()
	detailHeight := ch / 2
	m.detail.SetSize(side, detailHeight)
	m.log.SetSize(side, ch-detailHeight)
	m.statusBar.SetWidth(m.width)

	canvasView := RenderCanvas(m.store.GetState(), ViewOf(m.ctl, m.spinner), cw, ch)
	if m.editor.IsActive() {
		canvasView = lipgloss.Place(cw, ch, lipgloss.Center, lipgloss.Center, m.editor.View())
	}
	sidebar := lipgloss.JoinVertical(lipgloss.Left, m.detail.View(), m.log.View())
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(cw).Height(ch).MaxHeight(ch).Render(canvasView),
		lipgloss.NewStyle().MaxHeight(ch).Render(sidebar),
	)

	var b strings.Builder
	b.WriteString(top)
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.ctl.Keys().ShortHelp()))
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}

// Run starts the TUI on store and machine until the user quits or ctx ends.
func Run(ctx context.Context, store *canvas.Store, machine *generation.Machine, name string, logger *zap.Logger) error {
	bridge := NewEventBridge(store, 0)
	defer bridge.Close()

	ctl := controller.New(store, machine, controller.WithLogger(logger), controller.WithContext(ctx))
	p := tea.NewProgram(
		NewAppModel(store, ctl, name, bridge.Events()),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
