// ABOUTME: Integrity lint rules for canvas graphs: dangling endpoints, slot conflicts, illegal edges, stale shadows.
// ABOUTME: Provides a single Lint(nodes, edges) function that runs every check and returns sorted diagnostics.
package validator

import (
	"fmt"
	"sort"

	"github.com/2389-research/flowcanvas/graph"
)

// Severity levels used by diagnostics.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Diagnostic represents a lint finding associated with a node or edge.
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	NodeID   string `json:"nodeId,omitempty"`
	EdgeID   string `json:"edgeId,omitempty"`
	Rule     string `json:"rule"`
}

func (d Diagnostic) String() string {
	switch {
	case d.EdgeID != "":
		return fmt.Sprintf("%s [%s] edge %s: %s", d.Severity, d.Rule, d.EdgeID, d.Message)
	case d.NodeID != "":
		return fmt.Sprintf("%s [%s] node %s: %s", d.Severity, d.Rule, d.NodeID, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Rule, d.Message)
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Lint runs all lint rules on the graph and returns any diagnostics found.
func Lint(nodes []graph.Node, edges []graph.Edge) []Diagnostic {
	byID := make(map[string]graph.Node, len(nodes))
	var diags []Diagnostic

	diags = append(diags, checkNodeIDs(nodes, byID)...)
	diags = append(diags, checkEdgeIDs(edges)...)
	diags = append(diags, checkEndpoints(edges, byID)...)
	diags = append(diags, checkSelfLoops(edges)...)
	diags = append(diags, checkSlots(edges)...)
	diags = append(diags, checkConnections(edges, byID)...)
	diags = append(diags, checkStaleShadows(nodes, edges)...)

	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Rule != diags[j].Rule {
			return diags[i].Rule < diags[j].Rule
		}
		if diags[i].NodeID != diags[j].NodeID {
			return diags[i].NodeID < diags[j].NodeID
		}
		return diags[i].EdgeID < diags[j].EdgeID
	})
	return diags
}

// checkNodeIDs flags duplicate ids and unknown categories, filling byID as it goes.
func checkNodeIDs(nodes []graph.Node, byID map[string]graph.Node) []Diagnostic {
	var diags []Diagnostic
	for _, n := range nodes {
		if n.ID == "" {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  "node has an empty id",
				Rule:     "node_id",
			})
			continue
		}
		if _, dup := byID[n.ID]; dup {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  "duplicate node id",
				NodeID:   n.ID,
				Rule:     "node_id",
			})
			continue
		}
		if !n.Category.Valid() {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("unknown category %q", n.Category),
				NodeID:   n.ID,
				Rule:     "node_category",
			})
			continue
		}
		byID[n.ID] = n
	}
	return diags
}

// checkEdgeIDs flags duplicate edge ids.
func checkEdgeIDs(edges []graph.Edge) []Diagnostic {
	seen := make(map[string]bool, len(edges))
	var diags []Diagnostic
	for _, e := range edges {
		if seen[e.ID] {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  "duplicate edge id",
				EdgeID:   e.ID,
				Rule:     "edge_id",
			})
		}
		seen[e.ID] = true
	}
	return diags
}

// checkEndpoints verifies both edge endpoints reference existing nodes.
func checkEndpoints(edges []graph.Edge, byID map[string]graph.Node) []Diagnostic {
	var diags []Diagnostic
	for _, e := range edges {
		if _, ok := byID[e.Source]; !ok {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("source %q does not exist", e.Source),
				EdgeID:   e.ID,
				Rule:     "edge_endpoint",
			})
		}
		if _, ok := byID[e.Target]; !ok {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("target %q does not exist", e.Target),
				EdgeID:   e.ID,
				Rule:     "edge_endpoint",
			})
		}
	}
	return diags
}

// checkSelfLoops flags edges that connect a node to itself.
func checkSelfLoops(edges []graph.Edge) []Diagnostic {
	var diags []Diagnostic
	for _, e := range edges {
		if e.Source == e.Target {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  "edge connects a node to itself",
				EdgeID:   e.ID,
				NodeID:   e.Source,
				Rule:     "self_loop",
			})
		}
	}
	return diags
}

// checkSlots verifies at most one edge occupies each (target, targetHandle) slot.
func checkSlots(edges []graph.Edge) []Diagnostic {
	type slot struct{ target, handle string }
	occupant := make(map[slot]string, len(edges))
	var diags []Diagnostic
	for _, e := range edges {
		k := slot{e.Target, e.TargetHandle}
		if prev, ok := occupant[k]; ok {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("slot %s already occupied by %s", e.TargetHandle, prev),
				EdgeID:   e.ID,
				NodeID:   e.Target,
				Rule:     "slot_exclusive",
			})
			continue
		}
		occupant[k] = e.ID
	}
	return diags
}

// checkConnections re-validates every edge whose endpoints exist.
func checkConnections(edges []graph.Edge, byID map[string]graph.Node) []Diagnostic {
	var diags []Diagnostic
	for _, e := range edges {
		src, okS := byID[e.Source]
		tgt, okT := byID[e.Target]
		if !okS || !okT || !src.Category.Valid() || !tgt.Category.Valid() {
			continue
		}
		if !IsValidConnection(src.Category, tgt.Category, e.SourceHandle, e.TargetHandle) {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message: fmt.Sprintf("%s(%s) cannot connect to %s(%s)",
					src.Category, e.SourceHandle, tgt.Category, e.TargetHandle),
				EdgeID: e.ID,
				Rule:   "edge_compatible",
			})
		}
	}
	return diags
}

// checkStaleShadows warns about shadow fields on nodes with no incoming edge.
func checkStaleShadows(nodes []graph.Node, edges []graph.Edge) []Diagnostic {
	incoming := make(map[string]bool, len(edges))
	for _, e := range edges {
		incoming[e.Target] = true
	}
	var diags []Diagnostic
	for _, n := range nodes {
		if n.Data.HasShadow() && !incoming[n.ID] {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Message:  "node carries upstream content but has no incoming edge",
				NodeID:   n.ID,
				Rule:     "stale_shadow",
			})
		}
	}
	return diags
}
