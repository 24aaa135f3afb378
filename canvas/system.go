// ABOUTME: System writes used by the generation machine and hydration: never recorded in undo history.
// ABOUTME: Covers generation-record updates, artifact write-back, and loading a persisted graph.
package canvas

import (
	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/graph/propagation"
	"github.com/2389-research/flowcanvas/graph/validator"
	"go.uber.org/zap"
)

// UpdateGeneration runs fn on a copy of a sink's generation record under the
// store lock and keeps the result if fn returns true. fn must not call back
// into the store. Returns false when the node is gone, is not a sink, or fn
// declined the change.
func (s *Store) UpdateGeneration(nodeID string, fn func(rec *graph.GenerationRecord) bool) bool {
	return s.mutate("update_generation", func() (Event, bool) {
		i := s.indexOf(nodeID)
		if i < 0 || !graph.IsSink(s.nodes[i].Category) {
			return Event{}, false
		}
		var rec graph.GenerationRecord
		if s.nodes[i].Data.Generation != nil {
			rec = *s.nodes[i].Data.Generation
		} else {
			rec.State = graph.GenerationIdle
		}
		if !fn(&rec) {
			return Event{}, false
		}
		s.nodes[i].Data.Generation = &rec
		return Event{Kind: EventGenerationChanged, NodeIDs: []string{nodeID}}, true
	})
}

// WriteOutput stores a generated artifact as a producer's output and pushes
// it along the producer's outgoing edges.
func (s *Store) WriteOutput(nodeID string, kind graph.MediaKind, url string) bool {
	return s.mutate("write_output", func() (Event, bool) {
		i := s.indexOf(nodeID)
		if i < 0 {
			return Event{}, false
		}
		switch kind {
		case graph.KindImage:
			s.nodes[i].Data.ImageURL = url
		case graph.KindVideo:
			s.nodes[i].Data.VideoURL = url
		default:
			return Event{}, false
		}
		ev := Event{Kind: EventNodeUpdated, NodeIDs: []string{nodeID}}
		ev.NodeIDs = append(ev.NodeIDs, s.propagateFrom(nodeID)...)
		return ev, true
	})
}

// Load replaces the whole graph, clearing selection and history. Nodes and
// edges that would break an invariant are dropped; the returned diagnostics
// describe every problem found in the input.
func (s *Store) Load(nodes []graph.Node, edges []graph.Edge) []validator.Diagnostic {
	diags := validator.Lint(nodes, edges)
	for _, d := range diags {
		if d.Severity == validator.SeverityError {
			s.logger.Warn("dropping invalid element on load",
				zap.String("rule", d.Rule),
				zap.String("node", d.NodeID),
				zap.String("edge", d.EdgeID),
				zap.String("message", d.Message))
		}
	}

	s.mutate("load", func() (Event, bool) {
		loaded := make([]graph.Node, 0, len(nodes))
		seen := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			if n.ID == "" || seen[n.ID] || !n.Category.Valid() {
				continue
			}
			seen[n.ID] = true
			fresh := newNode(n.ID, n.Category, n.Position, n.Data)
			fresh.Style = n.Clone().Style
			loaded = append(loaded, fresh)
		}

		var removed []string
		for _, n := range s.nodes {
			if !seen[n.ID] {
				removed = append(removed, n.ID)
			}
		}

		s.nodes = loaded
		s.edges = nil
		s.selection = ""
		s.history.Clear()

		for _, e := range edges {
			s.loadEdge(e)
		}
		return Event{Kind: EventLoaded, Removed: removed}, true
	})
	return diags
}

// loadEdge adds one hydrated edge if it is valid and its slot is free.
func (s *Store) loadEdge(e graph.Edge) {
	sh, th, ok := s.resolveConnection(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
	if !ok || s.slotIndex(e.Target, th) >= 0 {
		return
	}
	id := graph.EdgeID(e.Source, sh, e.Target, th)
	s.edges = append(s.edges, graph.Edge{
		ID:           id,
		Source:       e.Source,
		SourceHandle: sh,
		Target:       e.Target,
		TargetHandle: th,
	})
	si, ti := s.indexOf(e.Source), s.indexOf(e.Target)
	propagation.OnConnect(s.nodes[si], s.nodes[ti], th).Apply(&s.nodes[ti].Data)
}
