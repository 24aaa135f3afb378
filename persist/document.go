// ABOUTME: Snapshot persistence contract: a minimal Document of node ids, categories, positions, model ids, and edges.
// ABOUTME: Everything else (content, artifacts, selection, history, generation state) starts empty on load.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/graph/validator"
)

// ErrNotFound is returned when a document id is unknown to a repository.
var ErrNotFound = errors.New("document not found")

// NodeRecord is the persisted shape of one node.
type NodeRecord struct {
	ID       string         `json:"id"`
	Category graph.Category `json:"category"`
	Position graph.Position `json:"position"`
	ModelID  string         `json:"modelId,omitempty"`
}

// Document is a saved canvas.
type Document struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Nodes   []NodeRecord `json:"nodes"`
	Edges   []graph.Edge `json:"edges"`
	SavedAt time.Time    `json:"savedAt"`
}

// Summary is a listing entry.
type Summary struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Nodes   int       `json:"nodes"`
	SavedAt time.Time `json:"savedAt"`
}

// Summary returns the listing entry for d.
func (d Document) Summary() Summary {
	return Summary{ID: d.ID, Name: d.Name, Nodes: len(d.Nodes), SavedAt: d.SavedAt}
}

// Repository stores documents.
type Repository interface {
	Save(ctx context.Context, doc Document) error
	Load(ctx context.Context, id string) (Document, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// FromState builds a document from a store state. An empty id gets a fresh ULID.
func FromState(id, name string, state canvas.State, now time.Time) Document {
	if id == "" {
		id = graph.NewULID()
	}
	doc := Document{
		ID:      id,
		Name:    name,
		Nodes:   make([]NodeRecord, 0, len(state.Nodes)),
		Edges:   graph.CloneEdges(state.Edges),
		SavedAt: now.UTC(),
	}
	for _, n := range state.Nodes {
		doc.Nodes = append(doc.Nodes, NodeRecord{
			ID:       n.ID,
			Category: n.Category,
			Position: n.Position,
			ModelID:  n.Data.ModelID,
		})
	}
	return doc
}

// Graph returns the nodes and edges d describes. Only model ids survive
// in node data.
func (d Document) Graph() ([]graph.Node, []graph.Edge) {
	nodes := make([]graph.Node, 0, len(d.Nodes))
	for _, r := range d.Nodes {
		nodes = append(nodes, graph.Node{
			ID:       r.ID,
			Category: r.Category,
			Position: r.Position,
			Data:     graph.NodeData{ModelID: r.ModelID},
		})
	}
	return nodes, d.Edges
}

// Hydrate replaces store's graph with doc's. Invalid nodes and edges are
// dropped; the diagnostics describe them.
func Hydrate(store *canvas.Store, doc Document) []validator.Diagnostic {
	return store.Load(doc.Graph())
}
