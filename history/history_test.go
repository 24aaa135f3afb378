// ABOUTME: Tests for the generic undo/redo history: stack semantics, limits, and the replay guard.
// ABOUTME: Uses plain string snapshots so the stack behaviour is easy to read.
package history

import "testing"

func TestPushUndoRedo(t *testing.T) {
	h := New[string](0)
	if h.CanUndo() || h.CanRedo() {
		t.Fatal("expected empty history")
	}

	h.Push("a")
	h.Push("b")

	got, ok := h.Undo("c")
	if !ok || got != "b" {
		t.Fatalf("expected undo to b, got %q (ok=%v)", got, ok)
	}
	got, ok = h.Undo("b")
	if !ok || got != "a" {
		t.Fatalf("expected undo to a, got %q (ok=%v)", got, ok)
	}
	if _, ok := h.Undo("a"); ok {
		t.Fatal("expected undo to fail on empty stack")
	}

	got, ok = h.Redo("a")
	if !ok || got != "b" {
		t.Fatalf("expected redo to b, got %q (ok=%v)", got, ok)
	}
	got, ok = h.Redo("b")
	if !ok || got != "c" {
		t.Fatalf("expected redo to c, got %q (ok=%v)", got, ok)
	}
	if _, ok := h.Redo("c"); ok {
		t.Fatal("expected redo to fail on empty stack")
	}
}

func TestPushClearsRedo(t *testing.T) {
	h := New[string](10)
	h.Push("a")
	h.Undo("b")
	if !h.CanRedo() {
		t.Fatal("expected redo available after undo")
	}
	h.Push("a")
	if h.CanRedo() {
		t.Fatal("expected push to clear redo stack")
	}
}

func TestLimitDropsOldest(t *testing.T) {
	h := New[int](3)
	for i := 0; i < 5; i++ {
		h.Push(i)
	}
	undo, _ := h.Len()
	if undo != 3 {
		t.Fatalf("expected 3 undo entries, got %d", undo)
	}
	var seen []int
	cur := 5
	for h.CanUndo() {
		prev, _ := h.Undo(cur)
		seen = append(seen, prev)
		cur = prev
	}
	if len(seen) != 3 || seen[0] != 4 || seen[2] != 2 {
		t.Errorf("unexpected undo order %v", seen)
	}
}

func TestReplayGuard(t *testing.T) {
	h := New[string](0)
	h.Replay(func() {
		if !h.Replaying() {
			t.Fatal("expected guard set during replay")
		}
		h.Push("ignored")
		h.Replay(func() {
			h.Push("ignored too")
		})
		if !h.Replaying() {
			t.Fatal("expected guard to survive a nested replay")
		}
	})
	if h.Replaying() {
		t.Fatal("expected guard cleared synchronously")
	}
	if h.CanUndo() {
		t.Fatal("pushes during replay must be ignored")
	}
}

func TestReplayGuard_ReleasedOnPanic(t *testing.T) {
	h := New[string](0)
	func() {
		defer func() { _ = recover() }()
		h.Replay(func() { panic("boom") })
	}()
	if h.Replaying() {
		t.Fatal("expected guard released after panic")
	}
}

func TestClear(t *testing.T) {
	h := New[string](0)
	h.Push("a")
	h.Undo("b")
	h.Push("c")
	h.Clear()
	if h.CanUndo() || h.CanRedo() {
		t.Fatal("expected both stacks empty")
	}
}
