// ABOUTME: Canvas interaction controller: turns pointer and keyboard input into graph store calls.
// ABOUTME: Resolves what sits under the cursor, which port a drop uses, and what the context menu offers.
package controller

import (
	"context"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/generation"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/graph/validator"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// PanStep is how far one pan key moves the viewport.
const PanStep = 4.0

// ActionKind tells the host what an input did.
type ActionKind string

const (
	ActionNone       ActionKind = ""
	ActionSelect     ActionKind = "select"
	ActionMutate     ActionKind = "mutate"
	ActionConnecting ActionKind = "connecting"
	ActionDragging   ActionKind = "dragging"
	ActionMenuOpen   ActionKind = "menu_open"
	ActionMenuClose  ActionKind = "menu_close"
	ActionSubmit     ActionKind = "submit"
	ActionCancel     ActionKind = "cancel"
	ActionPan        ActionKind = "pan"
	ActionRejected   ActionKind = "rejected"
)

// Action is the outcome of one input.
type Action struct {
	Kind   ActionKind
	NodeID string
}

// Menu is an open context menu of node categories. When Source is set,
// choosing an item also connects the new node to it.
type Menu struct {
	Position graph.Position
	Items    []graph.Category
	Cursor   int
	Source   *Port
}

type nodeDrag struct {
	nodeID string
	grab   graph.Position
	start  graph.Position
	pos    graph.Position
}

// Option configures a Controller.
type Option func(*Controller)

// WithKeyMap replaces the default bindings.
func WithKeyMap(k KeyMap) Option {
	return func(c *Controller) { c.keys = k }
}

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContext sets the context generation submissions run under.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// Controller holds transient interaction state. It is driven from a single
// UI goroutine and is not safe for concurrent use.
type Controller struct {
	store   *canvas.Store
	machine *generation.Machine
	keys    KeyMap
	logger  *zap.Logger
	ctx     context.Context

	origin  graph.Position
	cursor  graph.Position
	editing bool
	menu    *Menu
	connect *Port
	drag    *nodeDrag
}

// New creates a controller. machine may be nil, in which case submit and
// cancel do nothing.
func New(store *canvas.Store, machine *generation.Machine, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		machine: machine,
		keys:    DefaultKeyMap(),
		logger:  zap.NewNop(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Keys returns the active bindings.
func (c *Controller) Keys() KeyMap { return c.keys }

// Origin is the canvas point shown at the top-left of the viewport.
func (c *Controller) Origin() graph.Position { return c.origin }

// Cursor is the last pointer position in canvas coordinates.
func (c *Controller) Cursor() graph.Position { return c.cursor }

// SetCursor moves the pointer, in canvas coordinates.
func (c *Controller) SetCursor(p graph.Position) { c.cursor = p }

// ToCanvas converts a screen cell to canvas coordinates.
func (c *Controller) ToCanvas(x, y int) graph.Position {
	return graph.Position{X: c.origin.X + float64(x), Y: c.origin.Y + float64(y)}
}

// SetEditing marks a text field as focused; editing shortcuts are ignored
// until it is cleared.
func (c *Controller) SetEditing(on bool) { c.editing = on }

// Editing reports whether a text field has focus.
func (c *Controller) Editing() bool { return c.editing }

// Menu returns a copy of the open context menu.
func (c *Controller) Menu() (Menu, bool) {
	if c.menu == nil {
		return Menu{}, false
	}
	m := *c.menu
	m.Items = append([]graph.Category(nil), c.menu.Items...)
	return m, true
}

// Connecting returns the source port of an in-progress drag-connect.
func (c *Controller) Connecting() (Port, bool) {
	if c.connect == nil {
		return Port{}, false
	}
	return *c.connect, true
}

// DragPreview returns where a node being dragged would land. The store is
// only updated on release.
func (c *Controller) DragPreview() (string, graph.Position, bool) {
	if c.drag == nil {
		return "", graph.Position{}, false
	}
	return c.drag.nodeID, c.drag.pos, true
}

// NodeAt returns the top-most node under p.
func (c *Controller) NodeAt(p graph.Position) (graph.Node, bool) {
	return NodeAt(c.store.GetState().Nodes, p)
}

// PortAt returns the port under p.
func (c *Controller) PortAt(p graph.Position) (Port, bool) {
	return PortAt(c.store.GetState().Nodes, p)
}

// BeginConnect starts dragging a connection out of a node's output port.
// An empty handle means the node's default output.
func (c *Controller) BeginConnect(nodeID, handle string) bool {
	n, ok := c.store.Node(nodeID)
	if !ok || !graph.IsProducer(n.Category) {
		return false
	}
	out := graph.DefaultOutputPort(n.Category)
	if handle == "" {
		handle = out
	}
	if handle != out {
		return false
	}
	c.closeMenu()
	c.drag = nil
	c.connect = &Port{NodeID: nodeID, Handle: handle, Side: SideOutput}
	return true
}

// DropConnect finishes a drag-connect at p. Dropping on an input port uses
// that port; dropping on a node body resolves the default target port;
// dropping on empty canvas opens a menu of categories that can accept the
// source.
func (c *Controller) DropConnect(p graph.Position) Action {
	src := c.connect
	c.connect = nil
	if src == nil {
		return Action{}
	}
	state := c.store.GetState()
	srcNode, ok := state.Node(src.NodeID)
	if !ok {
		return Action{Kind: ActionRejected}
	}

	if port, ok := PortAt(state.Nodes, p); ok && port.Side == SideInput && port.NodeID != src.NodeID {
		return c.connectResult(c.store.Connect(src.NodeID, src.Handle, port.NodeID, port.Handle), port.NodeID)
	}
	if n, ok := NodeAt(state.Nodes, p); ok {
		if n.ID == src.NodeID {
			return Action{}
		}
		return c.connectResult(c.store.Connect(src.NodeID, src.Handle, n.ID, ""), n.ID)
	}

	targets := validator.ValidTargets(srcNode.Category)
	if len(targets) == 0 {
		return Action{Kind: ActionRejected}
	}
	source := *src
	c.menu = &Menu{Position: p, Items: targets, Source: &source}
	return Action{Kind: ActionMenuOpen, NodeID: src.NodeID}
}

func (c *Controller) connectResult(edgeID, target string) Action {
	if edgeID == "" {
		c.logger.Debug("drop rejected", zap.String("target", target))
		return Action{Kind: ActionRejected, NodeID: target}
	}
	return Action{Kind: ActionMutate, NodeID: target}
}

// OpenMenu opens the full category menu at p.
func (c *Controller) OpenMenu(p graph.Position) Action {
	c.connect = nil
	c.drag = nil
	c.menu = &Menu{Position: p, Items: graph.Categories()}
	return Action{Kind: ActionMenuOpen}
}

// CloseMenu dismisses the context menu.
func (c *Controller) CloseMenu() Action {
	if c.menu == nil {
		return Action{}
	}
	c.closeMenu()
	return Action{Kind: ActionMenuClose}
}

func (c *Controller) closeMenu() { c.menu = nil }

// ChooseMenu creates the node at index i of the open menu, connecting it to
// the menu's pending source if there is one. Returns the new node id.
func (c *Controller) ChooseMenu(i int) string {
	m := c.menu
	if m == nil || i < 0 || i >= len(m.Items) {
		return ""
	}
	c.menu = nil
	id := c.store.AddNode(m.Items[i], m.Position, graph.NodeData{})
	if id == "" {
		return ""
	}
	if m.Source != nil && c.store.Connect(m.Source.NodeID, m.Source.Handle, id, "") == "" {
		c.logger.Warn("menu node could not be connected",
			zap.String("source", m.Source.NodeID), zap.String("node", id))
	}
	c.store.SetSelection(id)
	return id
}

// HandleMouse processes a pointer event given in screen cells.
func (c *Controller) HandleMouse(msg tea.MouseMsg) Action {
	p := c.ToCanvas(msg.X, msg.Y)
	c.cursor = p

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			return c.press(p)
		case tea.MouseButtonRight:
			return c.OpenMenu(p)
		}
	case tea.MouseActionMotion:
		if c.connect != nil {
			return Action{Kind: ActionConnecting, NodeID: c.connect.NodeID}
		}
		if c.drag != nil {
			c.drag.pos = graph.Position{X: p.X - c.drag.grab.X, Y: p.Y - c.drag.grab.Y}
			return Action{Kind: ActionDragging, NodeID: c.drag.nodeID}
		}
	case tea.MouseActionRelease:
		if c.connect != nil {
			return c.DropConnect(p)
		}
		if c.drag != nil {
			c.drag.pos = graph.Position{X: p.X - c.drag.grab.X, Y: p.Y - c.drag.grab.Y}
			return c.release()
		}
	}
	return Action{}
}

func (c *Controller) press(p graph.Position) Action {
	if c.menu != nil {
		return c.CloseMenu()
	}
	state := c.store.GetState()
	if port, ok := PortAt(state.Nodes, p); ok && port.Side == SideOutput {
		c.BeginConnect(port.NodeID, port.Handle)
		return Action{Kind: ActionConnecting, NodeID: port.NodeID}
	}
	n, ok := NodeAt(state.Nodes, p)
	if !ok {
		c.store.SetSelection("")
		return Action{Kind: ActionSelect}
	}
	c.store.SetSelection(n.ID)
	c.drag = &nodeDrag{
		nodeID: n.ID,
		grab:   graph.Position{X: p.X - n.Position.X, Y: p.Y - n.Position.Y},
		start:  n.Position,
		pos:    n.Position,
	}
	return Action{Kind: ActionSelect, NodeID: n.ID}
}

// release commits a node drag as a single move.
func (c *Controller) release() Action {
	d := c.drag
	c.drag = nil
	if d.pos == d.start {
		return Action{Kind: ActionSelect, NodeID: d.nodeID}
	}
	if !c.store.MoveNode(d.nodeID, d.pos) {
		return Action{Kind: ActionRejected, NodeID: d.nodeID}
	}
	return Action{Kind: ActionMutate, NodeID: d.nodeID}
}

// HandleKey processes a key press. Editing shortcuts are ignored while a
// text field has focus.
func (c *Controller) HandleKey(msg tea.KeyMsg) Action {
	if c.editing {
		return Action{}
	}
	if c.menu != nil {
		return c.menuKey(msg)
	}

	selected := c.store.GetState().Selection
	switch {
	case key.Matches(msg, c.keys.Cancel):
		return c.cancel(selected)
	case key.Matches(msg, c.keys.Undo):
		return mutated(c.store.Undo(), "")
	case key.Matches(msg, c.keys.Redo):
		return mutated(c.store.Redo(), "")
	case key.Matches(msg, c.keys.Copy):
		if c.store.CopySelection() {
			return Action{Kind: ActionMutate, NodeID: selected}
		}
	case key.Matches(msg, c.keys.Paste):
		id := c.store.PasteClipboard(c.cursor)
		return mutated(id != "", id)
	case key.Matches(msg, c.keys.Duplicate):
		if selected == "" {
			return Action{}
		}
		id := c.store.DuplicateNode(selected)
		return mutated(id != "", id)
	case key.Matches(msg, c.keys.Delete):
		if selected == "" {
			return Action{}
		}
		return mutated(c.store.RemoveNode(selected), selected)
	case key.Matches(msg, c.keys.Submit):
		return c.submit(selected)
	case key.Matches(msg, c.keys.AddNode):
		return c.OpenMenu(c.cursor)
	case key.Matches(msg, c.keys.PanLeft):
		return c.pan(-PanStep, 0)
	case key.Matches(msg, c.keys.PanRight):
		return c.pan(PanStep, 0)
	case key.Matches(msg, c.keys.PanUp):
		return c.pan(0, -PanStep)
	case key.Matches(msg, c.keys.PanDown):
		return c.pan(0, PanStep)
	}
	return Action{}
}

func (c *Controller) menuKey(msg tea.KeyMsg) Action {
	switch {
	case key.Matches(msg, c.keys.Cancel):
		return c.CloseMenu()
	case key.Matches(msg, c.keys.MenuUp):
		if c.menu.Cursor > 0 {
			c.menu.Cursor--
		}
	case key.Matches(msg, c.keys.MenuDown):
		if c.menu.Cursor < len(c.menu.Items)-1 {
			c.menu.Cursor++
		}
	case key.Matches(msg, c.keys.MenuChoose):
		id := c.ChooseMenu(c.menu.Cursor)
		return mutated(id != "", id)
	}
	return Action{Kind: ActionMenuOpen}
}

// cancel unwinds the innermost interaction: a pending connection, a node
// drag, a running generation, then the selection.
func (c *Controller) cancel(selected string) Action {
	switch {
	case c.connect != nil:
		c.connect = nil
		return Action{Kind: ActionCancel}
	case c.drag != nil:
		c.drag = nil
		return Action{Kind: ActionCancel}
	case selected != "" && c.machine != nil && c.machine.Cancel(selected):
		return Action{Kind: ActionCancel, NodeID: selected}
	case selected != "":
		c.store.SetSelection("")
		return Action{Kind: ActionSelect}
	}
	return Action{}
}

func (c *Controller) submit(selected string) Action {
	if selected == "" || c.machine == nil {
		return Action{}
	}
	sink, ok := c.machine.Submit(c.ctx, selected)
	if !ok {
		return Action{Kind: ActionRejected, NodeID: selected}
	}
	return Action{Kind: ActionSubmit, NodeID: sink}
}

func (c *Controller) pan(dx, dy float64) Action {
	c.origin = c.origin.Add(graph.Position{X: dx, Y: dy})
	return Action{Kind: ActionPan}
}

func mutated(ok bool, id string) Action {
	if !ok {
		return Action{}
	}
	return Action{Kind: ActionMutate, NodeID: id}
}
