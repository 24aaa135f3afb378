// ABOUTME: Graph store: the authoritative mutable canvas exposing the node/edge mutation API.
// ABOUTME: Orchestrates the validator, propagation engine, and undo history under one mutex.
package canvas

import (
	"slices"
	"sort"
	"sync"

	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/graph/propagation"
	"github.com/2389-research/flowcanvas/graph/validator"
	"github.com/2389-research/flowcanvas/history"
	"github.com/2389-research/flowcanvas/metrics"
	"go.uber.org/zap"
)

// DefaultDuplicateOffset is how far a duplicate lands from its original.
var DefaultDuplicateOffset = graph.Position{X: 40, Y: 40}

// Store is the canvas graph. All methods are safe for concurrent use;
// invalid operations fail closed and report false or an empty id.
type Store struct {
	mu        sync.Mutex
	nodes     []graph.Node
	edges     []graph.Edge
	selection string
	clipboard *ClipboardEntry
	history   *history.History[Snapshot]

	historyLimit int
	newID        func() string
	offset       graph.Position
	logger       *zap.Logger
	metrics      *metrics.Collector

	lmu       sync.Mutex
	listeners map[uint64]Listener
	nextSub   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for integrity diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.historyLimit = n }
}

// WithIDGenerator replaces the node id source. Tests use it for stable ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithDuplicateOffset changes where duplicates are placed.
func WithDuplicateOffset(p graph.Position) Option {
	return func(s *Store) { s.offset = p }
}

// WithMetrics records mutations and rejections on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		newID:     graph.NewNodeID,
		offset:    DefaultDuplicateOffset,
		logger:    zap.NewNop(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = history.New[Snapshot](s.historyLimit)
	return s
}

// Subscribe registers l for every applied mutation. The returned func
// removes it and is safe to call more than once.
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) emit(ev Event) {
	s.lmu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = s.listeners[id]
	}
	s.lmu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}

// mutate runs fn under the store lock and publishes its event once the lock
// is released. An event with an empty kind is an accepted no-op.
func (s *Store) mutate(op string, fn func() (Event, bool)) bool {
	ev, ok := s.locked(fn)
	if !ok {
		s.metrics.Reject(op)
		return false
	}
	if ev.Kind == "" {
		return true
	}
	s.metrics.Mutation(string(ev.Kind))
	s.emit(ev)
	return true
}

func (s *Store) locked(fn func() (Event, bool)) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// record pushes the pre-mutation state. The history ignores it during replay.
func (s *Store) record() {
	s.history.Push(s.snapshotLocked())
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Nodes: graph.CloneNodes(s.nodes), Edges: graph.CloneEdges(s.edges)}
}

func (s *Store) indexOf(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) edgeIndex(id string) int {
	for i := range s.edges {
		if s.edges[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) slotIndex(target, handle string) int {
	for i := range s.edges {
		if s.edges[i].Target == target && s.edges[i].TargetHandle == handle {
			return i
		}
	}
	return -1
}

// incomingLinks returns the incoming links of target in connection order.
func (s *Store) incomingLinks(target string) []propagation.Link {
	var links []propagation.Link
	for _, e := range s.edges {
		if e.Target != target {
			continue
		}
		if i := s.indexOf(e.Source); i >= 0 {
			links = append(links, propagation.Link{Source: s.nodes[i], TargetHandle: e.TargetHandle})
		}
	}
	return links
}

// refresh recomputes the shadow field edge e feeds from every edge that still
// targets the same node. Used after e is removed or its source changed.
func (s *Store) refresh(e graph.Edge) {
	ti := s.indexOf(e.Target)
	if ti < 0 {
		return
	}
	si := s.indexOf(e.Source)
	if si < 0 {
		s.logger.Warn("edge source missing during propagation",
			zap.String("edge", e.ID), zap.String("source", e.Source))
		return
	}
	cleared := propagation.OnDisconnect(s.nodes[si].Category, s.nodes[ti], e.TargetHandle)
	propagation.Refill(cleared, s.nodes[ti], s.incomingLinks(e.Target)).Apply(&s.nodes[ti].Data)
}

// AddNode creates a node with a fresh id and returns it.
func (s *Store) AddNode(category graph.Category, pos graph.Position, data graph.NodeData) string {
	var id string
	s.mutate("add_node", func() (Event, bool) {
		if !category.Valid() {
			return Event{}, false
		}
		newID := s.newID()
		if s.indexOf(newID) >= 0 {
			s.logger.Warn("id generator returned an existing node id", zap.String("node", newID))
			return Event{}, false
		}
		s.record()
		s.nodes = append(s.nodes, newNode(newID, category, pos, data))
		id = newID
		return Event{Kind: EventNodeAdded, NodeIDs: []string{id}}, true
	})
	return id
}

// newNode builds a node holding only authored data. Sinks start with an idle
// generation record.
func newNode(id string, category graph.Category, pos graph.Position, data graph.NodeData) graph.Node {
	n := graph.Node{
		ID:       id,
		Category: category,
		Position: pos,
		Data:     data.Sanitized().Authored(),
	}
	if graph.IsSink(category) {
		n.Data.Generation = &graph.GenerationRecord{State: graph.GenerationIdle}
	}
	return n
}

// RemoveNode deletes a node and every edge touching it, clearing what those
// edges supplied to their surviving targets.
func (s *Store) RemoveNode(id string) bool {
	return s.mutate("remove_node", func() (Event, bool) {
		i := s.indexOf(id)
		if i < 0 {
			return Event{}, false
		}
		s.record()

		var removed, kept []graph.Edge
		for _, e := range s.edges {
			if e.Source == id || e.Target == id {
				removed = append(removed, e)
			} else {
				kept = append(kept, e)
			}
		}
		s.edges = kept

		ev := Event{Kind: EventNodeRemoved, Removed: []string{id}}
		for _, e := range removed {
			ev.EdgeIDs = append(ev.EdgeIDs, e.ID)
			if e.Target != id {
				s.refresh(e)
				ev.NodeIDs = append(ev.NodeIDs, e.Target)
			}
		}
		s.nodes = slices.Delete(s.nodes, i, i+1)
		if s.selection == id {
			s.selection = ""
		}
		return ev, true
	})
}

// CanConnect reports whether Connect with the same arguments would succeed,
// without mutating anything.
func (s *Store) CanConnect(source, sourceHandle, target, targetHandle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, ok := s.resolveConnection(source, sourceHandle, target, targetHandle)
	return ok
}

func (s *Store) resolveConnection(source, sourceHandle, target, targetHandle string) (string, string, bool) {
	si, ti := s.indexOf(source), s.indexOf(target)
	if si < 0 || ti < 0 || source == target {
		return "", "", false
	}
	src, tgt := s.nodes[si], s.nodes[ti]
	if sourceHandle == "" {
		sourceHandle = validator.ResolveSourceHandle(src.Category)
	}
	if targetHandle == "" {
		targetHandle = validator.ResolveTargetHandle(src.Category, tgt.Category)
		if targetHandle == "" {
			return "", "", false
		}
	}
	if !validator.IsValidConnection(src.Category, tgt.Category, sourceHandle, targetHandle) {
		return "", "", false
	}
	return sourceHandle, targetHandle, true
}

// Connect adds an edge, resolving unset handles to their defaults. Any edge
// already in the destination slot is replaced. Returns the edge id.
func (s *Store) Connect(source, sourceHandle, target, targetHandle string) string {
	var edgeID string
	s.mutate("connect", func() (Event, bool) {
		sh, th, ok := s.resolveConnection(source, sourceHandle, target, targetHandle)
		if !ok {
			return Event{}, false
		}
		id := graph.EdgeID(source, sh, target, th)
		if s.edgeIndex(id) >= 0 {
			edgeID = id
			return Event{}, true
		}
		s.record()

		ev := Event{Kind: EventEdgeAdded, EdgeIDs: []string{id}, NodeIDs: []string{target}}
		if j := s.slotIndex(target, th); j >= 0 {
			old := s.edges[j]
			s.edges = slices.Delete(s.edges, j, j+1)
			s.refresh(old)
			ev.EdgeIDs = append(ev.EdgeIDs, old.ID)
		}

		s.edges = append(s.edges, graph.Edge{
			ID:           id,
			Source:       source,
			SourceHandle: sh,
			Target:       target,
			TargetHandle: th,
		})
		si, ti := s.indexOf(source), s.indexOf(target)
		propagation.OnConnect(s.nodes[si], s.nodes[ti], th).Apply(&s.nodes[ti].Data)

		edgeID = id
		return ev, true
	})
	return edgeID
}

// Disconnect removes an edge and clears what it supplied to its target.
func (s *Store) Disconnect(edgeID string) bool {
	return s.mutate("disconnect", func() (Event, bool) {
		j := s.edgeIndex(edgeID)
		if j < 0 {
			return Event{}, false
		}
		s.record()
		e := s.edges[j]
		s.edges = slices.Delete(s.edges, j, j+1)
		s.refresh(e)
		return Event{Kind: EventEdgeRemoved, EdgeIDs: []string{e.ID}, NodeIDs: []string{e.Target}}, true
	})
}

// DuplicateNode clones a node's authored data onto a new, selected node
// placed at the duplicate offset. Returns the new id.
func (s *Store) DuplicateNode(id string) string {
	var newID string
	s.mutate("duplicate_node", func() (Event, bool) {
		i := s.indexOf(id)
		if i < 0 {
			return Event{}, false
		}
		candidate := s.newID()
		if s.indexOf(candidate) >= 0 {
			s.logger.Warn("id generator returned an existing node id", zap.String("node", candidate))
			return Event{}, false
		}
		s.record()

		orig := s.nodes[i]
		n := newNode(candidate, orig.Category, orig.Position.Add(s.offset), orig.Data)
		n.Style = orig.Clone().Style
		n.Fresh = true
		s.nodes = append(s.nodes, n)
		s.selectLocked(candidate)

		newID = candidate
		return Event{Kind: EventNodeAdded, NodeIDs: []string{candidate}}, true
	})
	return newID
}

// MoveNode sets a node's position. Moving to the current position is an
// accepted no-op with no history entry.
func (s *Store) MoveNode(id string, pos graph.Position) bool {
	return s.mutate("move_node", func() (Event, bool) {
		i := s.indexOf(id)
		if i < 0 {
			return Event{}, false
		}
		if s.nodes[i].Position == pos {
			return Event{}, true
		}
		s.record()
		s.nodes[i].Position = pos
		return Event{Kind: EventNodeMoved, NodeIDs: []string{id}}, true
	})
}

// UpdateNode applies an authored-field patch and re-propagates the node's
// output along its outgoing edges.
func (s *Store) UpdateNode(id string, patch graph.DataPatch) bool {
	return s.mutate("update_node", func() (Event, bool) {
		i := s.indexOf(id)
		if i < 0 || patch.Empty() {
			return Event{}, false
		}
		s.record()
		patch.Apply(&s.nodes[i].Data)
		ev := Event{Kind: EventNodeUpdated, NodeIDs: []string{id}}
		ev.NodeIDs = append(ev.NodeIDs, s.propagateFrom(id)...)
		return ev, true
	})
}

// propagateFrom refreshes every edge leaving id and returns the touched targets.
func (s *Store) propagateFrom(id string) []string {
	var targets []string
	for _, e := range s.edges {
		if e.Source == id {
			s.refresh(e)
			targets = append(targets, e.Target)
		}
	}
	return targets
}

// SetSelection selects one node, or none for an empty id.
func (s *Store) SetSelection(id string) bool {
	return s.mutate("set_selection", func() (Event, bool) {
		if id != "" && s.indexOf(id) < 0 {
			return Event{}, false
		}
		s.selectLocked(id)
		return Event{Kind: EventSelectionChanged, NodeIDs: nonEmpty(id)}, true
	})
}

func (s *Store) selectLocked(id string) {
	s.selection = id
	for i := range s.nodes {
		s.nodes[i].Selected = s.nodes[i].ID == id
	}
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

// Undo restores the previous snapshot.
func (s *Store) Undo() bool {
	return s.replay("undo", s.history.Undo)
}

// Redo restores the most recently undone snapshot.
func (s *Store) Redo() bool {
	return s.replay("redo", s.history.Redo)
}

func (s *Store) replay(op string, pop func(Snapshot) (Snapshot, bool)) bool {
	return s.mutate(op, func() (Event, bool) {
		snap, ok := pop(s.snapshotLocked())
		if !ok {
			return Event{}, false
		}
		var ev Event
		s.history.Replay(func() { ev = s.applySnapshot(snap) })
		return ev, true
	})
}

// applySnapshot replaces nodes and edges with a copy of snap. Generation
// records are not part of undo: surviving nodes keep their live record and
// restored in-flight records are settled to idle.
func (s *Store) applySnapshot(snap Snapshot) Event {
	live := make(map[string]graph.GenerationRecord)
	for _, n := range s.nodes {
		if n.Data.Generation != nil {
			live[n.ID] = *n.Data.Generation
		}
	}

	nodes := graph.CloneNodes(snap.Nodes)
	present := make(map[string]bool, len(nodes))
	selection := ""
	for i := range nodes {
		n := &nodes[i]
		present[n.ID] = true
		if rec, ok := live[n.ID]; ok {
			n.Data.Generation = &rec
		} else if n.Data.Generation != nil {
			n.Data.Generation.Settle()
		}
		if n.Selected {
			selection = n.ID
		}
	}

	var removed []string
	for _, n := range s.nodes {
		if !present[n.ID] {
			removed = append(removed, n.ID)
		}
	}

	s.nodes = nodes
	s.edges = graph.CloneEdges(snap.Edges)
	s.selection = selection
	return Event{Kind: EventHistoryApplied, Removed: removed}
}

// CanUndo reports whether Undo would succeed.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// GetState returns a deep copy of the whole store.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Nodes:     graph.CloneNodes(s.nodes),
		Edges:     graph.CloneEdges(s.edges),
		Selection: s.selection,
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
	}
	if s.clipboard != nil {
		c := s.clipboard.clone()
		st.Clipboard = &c
	}
	return st
}

// Snapshot returns a deep copy of nodes and edges.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Node returns a copy of one node.
func (s *Store) Node(id string) (graph.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return graph.Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// IncomingEdges returns the edges targeting id in connection order.
func (s *Store) IncomingEdges(id string) []graph.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graph.Edge
	for _, e := range s.edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingEdges returns the edges leaving id in connection order.
func (s *Store) OutgoingEdges(id string) []graph.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graph.Edge
	for _, e := range s.edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}
