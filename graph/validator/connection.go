// ABOUTME: Connection validator: decides whether a proposed edge is legal and picks default handles.
// ABOUTME: Single source of truth for both drag-connect acceptance and which input ports a node renders.
package validator

import "github.com/2389-research/flowcanvas/graph"

// IsValidConnection reports whether an edge from src to tgt is legal. Empty
// handles mean "unset". The source handle, when set, must be the source's
// output port. Rules are checked in priority order.
func IsValidConnection(src, tgt graph.Category, srcHandle, tgtHandle string) bool {
	if srcHandle != "" && srcHandle != graph.DefaultOutputPort(src) {
		return false
	}
	srcCaps := graph.CapabilitiesOf(src)
	tgtCaps := graph.CapabilitiesOf(tgt)

	// A sink accepts any producer on any of its rendered ports.
	if graph.IsSink(tgt) {
		return tgtHandle == "" || graph.HasInputPort(tgt, tgtHandle)
	}

	// Reverse bookkeeping edge pairing a sink with a video producer.
	if graph.IsSink(src) {
		return tgtCaps.OutputsVideo && (tgtHandle == "" || tgtHandle == graph.HandleOutput)
	}

	if srcCaps.OutputsText && tgtCaps.AcceptsText &&
		(tgtHandle == "" || tgtHandle == graph.HandleText) {
		return true
	}

	if srcCaps.OutputsImage && tgtCaps.AcceptsImage &&
		(tgtHandle == "" || tgtHandle == graph.HandleImage) {
		return true
	}

	if srcCaps.OutputsVideo && tgtHandle == graph.HandleVideo && graph.HasInputPort(tgt, graph.HandleVideo) {
		return true
	}

	return false
}

// ResolveSourceHandle returns the handle used when a connection leaves the
// source handle unset.
func ResolveSourceHandle(src graph.Category) string {
	return graph.DefaultOutputPort(src)
}

// ResolveTargetHandle returns the handle used when a connection leaves the
// target handle unset, or "" when no port of tgt can take src.
func ResolveTargetHandle(src, tgt graph.Category) string {
	if graph.IsSink(src) {
		if graph.CapabilitiesOf(tgt).OutputsVideo {
			return graph.HandleOutput
		}
		return ""
	}

	var candidates []string
	switch graph.OutputKind(src) {
	case graph.KindText:
		candidates = []string{graph.HandleText}
	case graph.KindImage:
		candidates = []string{graph.HandleImage}
	case graph.KindVideo:
		candidates = []string{graph.HandleVideo}
	}
	for _, h := range candidates {
		if IsValidConnection(src, tgt, "", h) {
			return h
		}
	}
	return ""
}

// ValidTargets lists the categories a node of category src could be dropped
// onto, in canonical order. Used to build the drag-to-empty-canvas menu.
func ValidTargets(src graph.Category) []graph.Category {
	var out []graph.Category
	for _, c := range graph.Categories() {
		if ResolveTargetHandle(src, c) != "" {
			out = append(out, c)
		}
	}
	return out
}
