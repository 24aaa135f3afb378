// ABOUTME: Read-side types of the canvas store: State, Snapshot, ClipboardEntry, and change events.
// ABOUTME: Everything handed out of the store is a deep copy, so callers can never alias live state.
package canvas

import "github.com/2389-research/flowcanvas/graph"

// Snapshot is an immutable {nodes, edges} pair held by the undo history.
type Snapshot struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// Clone returns a structurally independent copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Nodes: graph.CloneNodes(s.Nodes), Edges: graph.CloneEdges(s.Edges)}
}

// ClipboardEntry is a single copied node.
type ClipboardEntry struct {
	Category graph.Category    `json:"category"`
	Data     graph.NodeData    `json:"data"`
	Style    map[string]string `json:"style,omitempty"`
}

func (c ClipboardEntry) clone() ClipboardEntry {
	n := graph.Node{Data: c.Data, Style: c.Style}.Clone()
	return ClipboardEntry{Category: c.Category, Data: n.Data, Style: n.Style}
}

// State is a point-in-time copy of the whole store.
type State struct {
	Nodes     []graph.Node    `json:"nodes"`
	Edges     []graph.Edge    `json:"edges"`
	Selection string          `json:"selection,omitempty"`
	Clipboard *ClipboardEntry `json:"clipboard,omitempty"`
	CanUndo   bool            `json:"canUndo"`
	CanRedo   bool            `json:"canRedo"`
}

// Node returns the node with the given id from the state copy.
func (s State) Node(id string) (graph.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

// EventKind names the kind of change a store event reports.
type EventKind string

const (
	EventNodeAdded         EventKind = "node_added"
	EventNodeRemoved       EventKind = "node_removed"
	EventNodeUpdated       EventKind = "node_updated"
	EventNodeMoved         EventKind = "node_moved"
	EventEdgeAdded         EventKind = "edge_added"
	EventEdgeRemoved       EventKind = "edge_removed"
	EventSelectionChanged  EventKind = "selection_changed"
	EventClipboardChanged  EventKind = "clipboard_changed"
	EventHistoryApplied    EventKind = "history_applied"
	EventGenerationChanged EventKind = "generation_changed"
	EventLoaded            EventKind = "loaded"
)

// Event describes one applied mutation. Removed lists node ids that no longer
// exist after it, whatever the kind.
type Event struct {
	Kind    EventKind `json:"kind"`
	NodeIDs []string  `json:"nodeIds,omitempty"`
	EdgeIDs []string  `json:"edgeIds,omitempty"`
	Removed []string  `json:"removed,omitempty"`
}

// Listener receives store events. Listeners run after the store lock is
// released, on the goroutine that performed the mutation, and may call back
// into the store.
type Listener func(Event)
