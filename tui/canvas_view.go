// ABOUTME: Renders the canvas graph into a fixed-size cell grid: edges, node boxes, ports, and the context menu.
// ABOUTME: One canvas unit is one terminal cell; runs of equally styled cells are rendered with lipgloss.
package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/controller"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/charmbracelet/lipgloss"
)

type cellStyle uint8

const (
	styleNone cellStyle = iota
	styleEdge
	stylePending
	stylePort
	styleSelected
	styleIdle
	styleGenerating
	styleComplete
	styleFailed
	styleMenu
	styleMenuCursor
)

var cellStyles = map[cellStyle]lipgloss.Style{
	styleEdge:       EdgeStyle,
	stylePending:    PendingStyle,
	stylePort:       PortStyle,
	styleSelected:   SelectedStyle,
	styleIdle:       IdleStyle,
	styleGenerating: GeneratingStyle,
	styleComplete:   CompleteStyle,
	styleFailed:     FailedStyle,
	styleMenu:       MenuStyle,
	styleMenuCursor: MenuCursor,
}

func statusCellStyle(s NodeStatus) cellStyle {
	switch s {
	case NodeGenerating:
		return styleGenerating
	case NodeComplete:
		return styleComplete
	case NodeFailed:
		return styleFailed
	default:
		return styleIdle
	}
}

type cell struct {
	r rune
	s cellStyle
}

type grid struct {
	w, h  int
	cells [][]cell
}

func newGrid(w, h int) grid {
	g := grid{w: w, h: h, cells: make([][]cell, h)}
	for y := range g.cells {
		row := make([]cell, w)
		for x := range row {
			row[x] = cell{r: ' '}
		}
		g.cells[y] = row
	}
	return g
}

func (g grid) set(x, y int, r rune, s cellStyle) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y][x] = cell{r: r, s: s}
}

// text writes at most max runes of s starting at (x, y).
func (g grid) text(x, y int, s string, max int, st cellStyle) {
	i := 0
	for _, r := range s {
		if i >= max {
			return
		}
		g.set(x+i, y, r, st)
		i++
	}
}

func (g grid) hline(x1, x2, y int, r rune, s cellStyle) {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	for x := x1; x <= x2; x++ {
		g.set(x, y, r, s)
	}
}

func (g grid) vline(x, y1, y2 int, r rune, s cellStyle) {
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	for y := y1; y <= y2; y++ {
		g.set(x, y, r, s)
	}
}

// route draws an elbow from (x1, y1) to (x2, y2) through the horizontal midpoint.
func (g grid) route(x1, y1, x2, y2 int, s cellStyle) {
	h, v := '─', '│'
	if s == stylePending {
		h, v = '╌', '╎'
	}
	mx := (x1 + x2) / 2
	g.hline(x1, mx, y1, h, s)
	g.vline(mx, y1, y2, v, s)
	g.hline(mx, x2, y2, h, s)
}

func (g grid) box(r controller.Rect, origin graph.Position, s cellStyle, double bool) (int, int, int, int) {
	x, y := cellOf(graph.Position{X: r.X, Y: r.Y}, origin)
	w, h := int(math.Round(r.W)), int(math.Round(r.H))
	tl, tr, bl, br, hz, vt := '┌', '┐', '└', '┘', '─', '│'
	if double {
		tl, tr, bl, br, hz, vt = '╔', '╗', '╚', '╝', '═', '║'
	}
	for yy := y + 1; yy < y+h-1; yy++ {
		g.hline(x+1, x+w-2, yy, ' ', styleNone)
	}
	g.hline(x+1, x+w-2, y, hz, s)
	g.hline(x+1, x+w-2, y+h-1, hz, s)
	g.vline(x, y+1, y+h-2, vt, s)
	g.vline(x+w-1, y+1, y+h-2, vt, s)
	g.set(x, y, tl, s)
	g.set(x+w-1, y, tr, s)
	g.set(x, y+h-1, bl, s)
	g.set(x+w-1, y+h-1, br, s)
	return x, y, w, h
}

func (g grid) String() string {
	var b strings.Builder
	for y, row := range g.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		cur := styleNone
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if st, ok := cellStyles[cur]; ok {
				b.WriteString(st.Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			run.Reset()
		}
		for _, c := range row {
			if c.s != cur {
				flush()
				cur = c.s
			}
			run.WriteRune(c.r)
		}
		flush()
	}
	return b.String()
}

func cellOf(p, origin graph.Position) (int, int) {
	return int(math.Round(p.X - origin.X)), int(math.Round(p.Y - origin.Y))
}

// CanvasView is the interaction state the canvas draws on top of the graph.
type CanvasView struct {
	Origin     graph.Position
	Cursor     graph.Position
	Spinner    int
	Connecting *controller.Port
	DragID     string
	DragPos    graph.Position
	Menu       *controller.Menu
}

// ViewOf captures the controller's current interaction state.
func ViewOf(c *controller.Controller, spinner int) CanvasView {
	v := CanvasView{Origin: c.Origin(), Cursor: c.Cursor(), Spinner: spinner}
	if p, ok := c.Connecting(); ok {
		v.Connecting = &p
	}
	if id, pos, ok := c.DragPreview(); ok {
		v.DragID, v.DragPos = id, pos
	}
	if m, ok := c.Menu(); ok {
		v.Menu = &m
	}
	return v
}

// RenderCanvas draws state into a w by h cell area.
func RenderCanvas(state canvas.State, v CanvasView, w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	g := newGrid(w, h)

	nodes := make([]graph.Node, len(state.Nodes))
	byID := make(map[string]graph.Node, len(state.Nodes))
	for i, n := range state.Nodes {
		if n.ID == v.DragID {
			n.Position = v.DragPos
		}
		nodes[i] = n
		byID[n.ID] = n
	}

	for _, e := range state.Edges {
		src, okS := byID[e.Source]
		tgt, okT := byID[e.Target]
		if !okS || !okT {
			continue
		}
		from, okF := findPort(src, controller.SideOutput, e.SourceHandle)
		to, okT := findPort(tgt, controller.SideInput, e.TargetHandle)
		if !okF || !okT {
			continue
		}
		x1, y1 := cellOf(from.Anchor, v.Origin)
		x2, y2 := cellOf(to.Anchor, v.Origin)
		g.route(x1, y1, x2, y2, styleEdge)
	}

	if v.Connecting != nil {
		x1, y1 := cellOf(v.Connecting.Anchor, v.Origin)
		x2, y2 := cellOf(v.Cursor, v.Origin)
		g.route(x1, y1, x2, y2, stylePending)
	}

	for _, n := range nodes {
		drawNode(g, n, v, n.ID == state.Selection)
	}

	if v.Menu != nil {
		drawMenu(g, *v.Menu, v.Origin)
	}
	return g.String()
}

func findPort(n graph.Node, side controller.PortSide, handle string) (controller.Port, bool) {
	for _, p := range controller.Ports(n) {
		if p.Side == side && p.Handle == handle {
			return p, true
		}
	}
	return controller.Port{}, false
}

func drawNode(g grid, n graph.Node, v CanvasView, selected bool) {
	status := StatusOf(n)
	border := statusCellStyle(status)
	if selected {
		border = styleSelected
	}
	x, y, w, h := g.box(controller.NodeRect(n), v.Origin, border, selected)
	inner := w - 4

	title := n.Category.Label()
	if n.Data.Label != "" {
		title = n.Data.Label
	}
	title = status.Icon() + " " + title
	if status == NodeGenerating {
		title += " " + SpinnerFrames[v.Spinner%len(SpinnerFrames)]
	}
	g.text(x+2, y+1, title, inner, statusCellStyle(status))

	row := y + 2
	for _, line := range nodeSummary(n) {
		if row >= y+h-1 {
			break
		}
		g.text(x+2, row, line, inner, styleNone)
		row++
	}

	for _, p := range controller.Ports(n) {
		px, py := cellOf(p.Anchor, v.Origin)
		r := '○'
		if p.Side == controller.SideOutput {
			r = '●'
		}
		g.set(px, py, r, stylePort)
	}
}

// nodeSummary returns the body lines shown inside a node box.
func nodeSummary(n graph.Node) []string {
	d := n.Data
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+oneLine(value))
		}
	}
	caps := graph.CapabilitiesOf(n.Category)
	switch {
	case n.Category == graph.CategoryText:
		add("", d.Content)
	case n.Category == graph.CategoryImage:
		add("", d.ImageURL)
	case graph.IsGenerator(n.Category):
		if caps.AcceptsText {
			add("prompt: ", d.SourceNodeContent)
		}
		if caps.AcceptsImage {
			add("image: ", d.SourceImageURL)
		}
		add("model: ", d.ModelID)
	default:
		add("from: ", d.SourceNodeContent)
	}
	if rec := d.Generation; rec != nil {
		switch {
		case rec.State == graph.GenerationGenerating:
			lines = append(lines, progressLine(rec))
		case rec.ArtifactURL != "":
			add("", rec.ArtifactURL)
		case rec.LastError != "":
			add("error: ", rec.LastError)
		}
	}
	return lines
}

func progressLine(rec *graph.GenerationRecord) string {
	const width = 10
	done := rec.TotalTicks - rec.RemainingTicks
	filled := 0
	if rec.TotalTicks > 0 {
		filled = done * width / rec.TotalTicks
	}
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat("-", width-filled), done, rec.TotalTicks)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func drawMenu(g grid, m controller.Menu, origin graph.Position) {
	x, y := cellOf(m.Position, origin)
	width := 0
	for _, c := range m.Items {
		width = max(width, len([]rune(c.Label())))
	}
	width += 4
	for i, c := range m.Items {
		st := styleMenu
		prefix := "  "
		if i == m.Cursor {
			st, prefix = styleMenuCursor, "› "
		}
		line := prefix + c.Label()
		line += strings.Repeat(" ", max(0, width-len([]rune(line))))
		g.text(x, y+i, line, width, st)
	}
}
