// ABOUTME: Read-only helpers for the generation machine: submit gating, sink reuse policy, and input collection.
// ABOUTME: All of these work from store copies and never mutate the graph.
package generation

import (
	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/graph"
)

// Ready reports whether a generator node's required upstream connections are
// satisfied. Text-only generators need a text producer wired into their text
// port from its output handle; image generators need an image producer wired
// into their image port that actually holds an image.
func Ready(store *canvas.Store, producer graph.Node) bool {
	if !graph.IsGenerator(producer.Category) {
		return false
	}
	caps := graph.CapabilitiesOf(producer.Category)
	edges := store.IncomingEdges(producer.ID)

	if caps.AcceptsImage {
		return hasImageSource(store, edges)
	}
	return hasTextSource(store, edges)
}

func hasTextSource(store *canvas.Store, edges []graph.Edge) bool {
	for _, e := range edges {
		if e.TargetHandle != graph.HandleText {
			continue
		}
		src, ok := store.Node(e.Source)
		if !ok || !graph.CapabilitiesOf(src.Category).OutputsText {
			continue
		}
		if e.SourceHandle == graph.DefaultOutputPort(src.Category) {
			return true
		}
	}
	return false
}

func hasImageSource(store *canvas.Store, edges []graph.Edge) bool {
	for _, e := range edges {
		if e.TargetHandle != graph.HandleImage {
			continue
		}
		src, ok := store.Node(e.Source)
		if !ok || !graph.CapabilitiesOf(src.Category).OutputsImage {
			continue
		}
		if _, value := src.Output(); value != "" {
			return true
		}
	}
	return false
}

// upstreamGenerator returns the most recently connected generator feeding sink.
func upstreamGenerator(store *canvas.Store, sinkID string) (graph.Node, bool) {
	edges := store.IncomingEdges(sinkID)
	for i := len(edges) - 1; i >= 0; i-- {
		src, ok := store.Node(edges[i].Source)
		if ok && graph.IsGenerator(src.Category) {
			return src, true
		}
	}
	return graph.Node{}, false
}

// reusableSink picks an existing downstream sink of producer: first an idle
// sink never submitted, then a submitted sink that never completed and is not
// currently generating.
func reusableSink(store *canvas.Store, producerID string) (string, bool) {
	var sinks []graph.Node
	for _, e := range store.OutgoingEdges(producerID) {
		n, ok := store.Node(e.Target)
		if ok && graph.IsSink(n.Category) {
			sinks = append(sinks, n)
		}
	}

	for _, n := range sinks {
		rec := n.Data.Generation
		if rec == nil || (!rec.Submitted && rec.State == graph.GenerationIdle) {
			return n.ID, true
		}
	}
	for _, n := range sinks {
		rec := n.Data.Generation
		if rec.Submitted && !rec.Completed && rec.State == graph.GenerationIdle {
			return n.ID, true
		}
	}
	return "", false
}

// collectInputs gathers what the collaborator needs from a producer's data.
func collectInputs(producer graph.Node) Inputs {
	d := producer.Data.Clone()
	return Inputs{
		Prompt:   d.Prompt(),
		ImageURL: d.SourceImageURL,
		ModelID:  d.ModelID,
		Quality:  d.Quality,
		Seed:     d.Seed,
		Strength: d.Strength,
		Extra:    d.Extra,
	}
}
