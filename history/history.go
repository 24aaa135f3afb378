// ABOUTME: Generic two-stack undo/redo history with a synchronous replay guard.
// ABOUTME: Not safe for concurrent use on its own; the owning store serializes access.
package history

// DefaultLimit is the number of undo entries kept when none is configured.
const DefaultLimit = 50

// History holds past and future snapshots of a value of type T. Snapshots
// must be independent copies; History never clones them itself.
type History[T any] struct {
	undo   []T
	redo   []T
	limit  int
	replay int
}

// New creates a history keeping at most limit undo entries.
// A non-positive limit selects DefaultLimit.
func New[T any](limit int) *History[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History[T]{limit: limit}
}

// Push records snap as the state before a fresh mutation and clears the redo
// stack. Pushes made while a replay is in progress are ignored.
func (h *History[T]) Push(snap T) {
	if h.replay > 0 {
		return
	}
	h.undo = append(h.undo, snap)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
}

// Undo pops the most recent snapshot, saving current onto the redo stack.
func (h *History[T]) Undo(current T) (T, bool) {
	var zero T
	if len(h.undo) == 0 {
		return zero, false
	}
	snap := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return snap, true
}

// Redo pops the most recently undone snapshot, saving current onto the undo stack.
func (h *History[T]) Redo(current T) (T, bool) {
	var zero T
	if len(h.redo) == 0 {
		return zero, false
	}
	snap := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	return snap, true
}

// CanUndo reports whether Undo would return a snapshot.
func (h *History[T]) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would return a snapshot.
func (h *History[T]) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the undo and redo stack depths.
func (h *History[T]) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

// Clear drops both stacks.
func (h *History[T]) Clear() {
	h.undo = nil
	h.redo = nil
}

// Replay runs apply with the replay guard held. The guard counts depth, so
// nested replays keep it set until the outermost one returns, and it is
// released even if apply panics.
func (h *History[T]) Replay(apply func()) {
	h.replay++
	defer func() { h.replay-- }()
	apply()
}

// Replaying reports whether a replay is in progress.
func (h *History[T]) Replaying() bool { return h.replay > 0 }
