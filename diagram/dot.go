// ABOUTME: Serializes a canvas graph to Graphviz DOT with category labels, port-labelled edges, and generation status fills.
// ABOUTME: Output is deterministic: nodes sorted by id, edges in graph order, attributes sorted by key.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2389-research/flowcanvas/graph"
)

// Fill colors for generation status.
const (
	ColorIdle       = "#ECEFF1"
	ColorGenerating = "#FFC107"
	ColorComplete   = "#4CAF50"
	ColorFailed     = "#F44336"
)

// Edge colors by the kind of value they carry.
var kindColors = map[graph.MediaKind]string{
	graph.KindText:  "#1E88E5",
	graph.KindImage: "#8E24AA",
	graph.KindVideo: "#F4511E",
}

// previewLen caps the content shown in a node label.
const previewLen = 40

// Options controls ToDOT.
type Options struct {
	// Name is the digraph name. Defaults to "canvas".
	Name string
	// Status fills nodes by the state of their generation record.
	Status bool
	// Positions pins nodes at their canvas coordinates for neato -n.
	Positions bool
}

// ToDOT renders nodes and edges as a DOT digraph.
func ToDOT(nodes []graph.Node, edges []graph.Edge, opts Options) string {
	name := opts.Name
	if name == "" {
		name = "canvas"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", quoteID(name))
	b.WriteString("  rankdir=\"LR\"\n")
	b.WriteString("  node [fontname=\"Helvetica\", shape=\"box\", style=\"rounded,filled\"]\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=\"10\"]\n")

	sorted := make([]graph.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	categories := make(map[string]graph.Category, len(nodes))
	for _, n := range sorted {
		categories[n.ID] = n.Category
		attrs := map[string]string{
			"label":     nodeLabel(n),
			"fillcolor": ColorIdle,
		}
		if opts.Status {
			attrs["fillcolor"] = statusColor(n.Data.Generation)
		}
		if opts.Positions {
			attrs["pos"] = fmt.Sprintf("%g,%g!", n.Position.X, -n.Position.Y)
		}
		fmt.Fprintf(&b, "  %s [%s]\n", quoteID(n.ID), formatAttrs(attrs))
	}

	for _, e := range edges {
		attrs := map[string]string{
			"label": e.SourceHandle + " → " + e.TargetHandle,
		}
		if c, ok := kindColors[graph.OutputKind(categories[e.Source])]; ok {
			attrs["color"] = c
		}
		fmt.Fprintf(&b, "  %s -> %s [%s]\n", quoteID(e.Source), quoteID(e.Target), formatAttrs(attrs))
	}

	b.WriteString("}\n")
	return b.String()
}

// nodeLabel is the category label plus a short preview of what the node holds.
func nodeLabel(n graph.Node) string {
	label := n.Category.Label()
	if n.Data.Label != "" {
		label = n.Data.Label
	}
	var detail string
	switch {
	case n.Data.Content != "":
		detail = n.Data.Content
	case n.Data.ImageURL != "":
		detail = n.Data.ImageURL
	case n.Data.VideoURL != "":
		detail = n.Data.VideoURL
	case n.Data.ModelID != "":
		detail = n.Data.ModelID
	}
	detail = strings.Join(strings.Fields(detail), " ")
	if r := []rune(detail); len(r) > previewLen {
		detail = string(r[:previewLen]) + "…"
	}
	if detail == "" {
		return label
	}
	return label + "\n" + detail
}

func statusColor(rec *graph.GenerationRecord) string {
	switch {
	case rec == nil:
		return ColorIdle
	case rec.State == graph.GenerationGenerating:
		return ColorGenerating
	case rec.State == graph.GenerationComplete:
		return ColorComplete
	case rec.LastError != "":
		return ColorFailed
	}
	return ColorIdle
}

// formatAttrs renders attrs as key="value" pairs sorted by key.
func formatAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quoteString(attrs[k]))
	}
	return strings.Join(parts, ", ")
}

// quoteString quotes s for DOT. Newlines become \n line breaks.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// quoteID leaves bare identifiers alone and quotes everything else.
func quoteID(id string) string {
	if id == "" {
		return `""`
	}
	for i, c := range id {
		bare := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !bare {
			return quoteString(id)
		}
	}
	return id
}
