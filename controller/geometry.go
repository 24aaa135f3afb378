// ABOUTME: Canvas geometry for hit testing: node rectangles and port anchor points in cell coordinates.
// ABOUTME: Ports come from the registry so what is drawn is exactly what can connect.
package controller

import (
	"math"

	"github.com/2389-research/flowcanvas/graph"
)

// PortRadius is how far from a port anchor a pointer still hits it.
const PortRadius = 1.0

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether p lies inside r. The right and bottom edges are exclusive.
func (r Rect) Contains(p graph.Position) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// NodeRect returns the on-canvas footprint of n.
func NodeRect(n graph.Node) Rect {
	size := graph.DefaultSize(n.Category)
	return Rect{X: n.Position.X, Y: n.Position.Y, W: size.Width, H: size.Height}
}

// PortSide distinguishes input ports from output ports.
type PortSide string

const (
	SideInput  PortSide = "input"
	SideOutput PortSide = "output"
)

// Port is one rendered connection point of a node.
type Port struct {
	NodeID string         `json:"nodeId"`
	Handle string         `json:"handle"`
	Side   PortSide       `json:"side"`
	Anchor graph.Position `json:"anchor"`
}

// Ports lists the ports n renders: inputs spaced along the left edge, the
// single output (if any) centred on the right edge.
func Ports(n graph.Node) []Port {
	r := NodeRect(n)
	inputs := graph.DefaultInputPorts(n.Category)
	ports := make([]Port, 0, len(inputs)+1)
	for i, h := range inputs {
		ports = append(ports, Port{
			NodeID: n.ID,
			Handle: h,
			Side:   SideInput,
			Anchor: graph.Position{X: r.X, Y: r.Y + float64(i+1)*r.H/float64(len(inputs)+1)},
		})
	}
	if graph.IsProducer(n.Category) {
		ports = append(ports, Port{
			NodeID: n.ID,
			Handle: graph.DefaultOutputPort(n.Category),
			Side:   SideOutput,
			Anchor: graph.Position{X: r.X + r.W, Y: r.Y + r.H/2},
		})
	}
	return ports
}

// NodeAt returns the top-most node whose rectangle contains p. Later nodes
// draw above earlier ones.
func NodeAt(nodes []graph.Node, p graph.Position) (graph.Node, bool) {
	for i := len(nodes) - 1; i >= 0; i-- {
		if NodeRect(nodes[i]).Contains(p) {
			return nodes[i], true
		}
	}
	return graph.Node{}, false
}

// PortAt returns the nearest port within PortRadius of p, preferring the
// top-most node when ports overlap.
func PortAt(nodes []graph.Node, p graph.Position) (Port, bool) {
	for i := len(nodes) - 1; i >= 0; i-- {
		best, bestDist, found := Port{}, math.Inf(1), false
		for _, port := range Ports(nodes[i]) {
			dx, dy := math.Abs(p.X-port.Anchor.X), math.Abs(p.Y-port.Anchor.Y)
			if dx > PortRadius || dy > PortRadius {
				continue
			}
			if d := math.Hypot(dx, dy); d < bestDist {
				best, bestDist, found = port, d, true
			}
		}
		if found {
			return best, true
		}
	}
	return Port{}, false
}
