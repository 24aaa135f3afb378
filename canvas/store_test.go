// ABOUTME: Tests for the canvas graph store: mutations, propagation wiring, slot exclusivity, and undo/redo.
// ABOUTME: Every test builds its own isolated store with sequential ids.
package canvas

import (
	"fmt"
	"sync"
	"testing"

	"github.com/2389-research/flowcanvas/graph"
	"github.com/google/go-cmp/cmp"
)

// newTestStore returns a store whose ids are n1, n2, ...
func newTestStore(opts ...Option) *Store {
	var mu sync.Mutex
	next := 0
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("n%d", next)
	}
	return New(append([]Option{WithIDGenerator(ids)}, opts...)...)
}

func mustNode(t *testing.T, s *Store, id string) graph.Node {
	t.Helper()
	n, ok := s.Node(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	return n
}

func TestScenarioA_ConnectAndDisconnectText(t *testing.T) {
	s := newTestStore()
	a := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "hello"})
	b := s.AddNode(graph.CategoryTextToImage, graph.Position{X: 200}, graph.NodeData{})

	edge := s.Connect(a, "text", b, "text")
	if edge == "" {
		t.Fatal("expected connect to succeed")
	}
	if got := mustNode(t, s, b).Data.SourceNodeContent; got != "hello" {
		t.Fatalf("sourceNodeContent = %q, want %q", got, "hello")
	}

	if !s.Disconnect(edge) {
		t.Fatal("expected disconnect to succeed")
	}
	if got := mustNode(t, s, b).Data.SourceNodeContent; got != "" {
		t.Fatalf("expected sourceNodeContent cleared, got %q", got)
	}
}

func TestConnect_ResolvesDefaultHandles(t *testing.T) {
	s := newTestStore()
	img := s.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{ImageURL: "https://x/a.png"})
	gen := s.AddNode(graph.CategoryImageToVideo, graph.Position{}, graph.NodeData{})

	id := s.Connect(img, "", gen, "")
	if id != graph.EdgeID(img, "image", gen, "image") {
		t.Fatalf("unexpected edge id %q", id)
	}
	if got := mustNode(t, s, gen).Data.SourceImageURL; got != "https://x/a.png" {
		t.Errorf("sourceImageUrl = %q", got)
	}
}

func TestConnect_RejectsInvalid(t *testing.T) {
	s := newTestStore()
	txt := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{})
	img := s.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{})
	gen := s.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	_, redoBefore := s.history.Len()
	undoBefore, _ := s.history.Len()

	tests := []struct {
		name             string
		src, sh, tgt, th string
	}{
		{"image into text-only generator", img, "", gen, ""},
		{"explicit wrong handle", txt, "text", gen, "image"},
		{"self loop", gen, "", gen, ""},
		{"missing source", "ghost", "", gen, ""},
		{"text into text", txt, "", img, ""},
	}
	for _, tt := range tests {
		if id := s.Connect(tt.src, tt.sh, tt.tgt, tt.th); id != "" {
			t.Errorf("%s: expected rejection, got edge %q", tt.name, id)
		}
	}
	undo, redo := s.history.Len()
	if undo != undoBefore || redo != redoBefore {
		t.Error("rejected connects must not push history")
	}
	if len(s.GetState().Edges) != 0 {
		t.Error("expected no edges")
	}
}

func TestSlotExclusivity(t *testing.T) {
	s := newTestStore()
	first := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "first"})
	second := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "second"})
	gen := s.AddNode(graph.CategoryTextToVideo, graph.Position{}, graph.NodeData{})

	s.Connect(first, "text", gen, "text")
	e2 := s.Connect(second, "text", gen, "text")

	in := s.IncomingEdges(gen)
	if len(in) != 1 {
		t.Fatalf("expected exactly one edge in slot, got %d", len(in))
	}
	if in[0].ID != e2 {
		t.Errorf("slot occupant = %s, want %s", in[0].ID, e2)
	}
	if got := mustNode(t, s, gen).Data.SourceNodeContent; got != "second" {
		t.Errorf("sourceNodeContent = %q, want %q", got, "second")
	}
}

func TestDisconnect_RefillsFromSurvivingEdge(t *testing.T) {
	s := newTestStore()
	a := s.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{ImageURL: "a.png"})
	b := s.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{ImageURL: "b.png"})
	r := s.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})

	s.Connect(a, "image", r, "image")
	eb := s.Connect(b, "image", r, "video")
	if got := mustNode(t, s, r).Data.SourceImageURL; got != "b.png" {
		t.Fatalf("expected latest edge to win, got %q", got)
	}
	s.Disconnect(eb)
	if got := mustNode(t, s, r).Data.SourceImageURL; got != "a.png" {
		t.Errorf("expected surviving edge content, got %q", got)
	}
}

func TestRemoveNode_CascadesEdges(t *testing.T) {
	s := newTestStore()
	txt := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := s.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	r := s.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	s.Connect(txt, "", gen, "")
	s.Connect(gen, "", r, "")
	s.SetSelection(txt)

	var got Event
	unsub := s.Subscribe(func(ev Event) { got = ev })
	defer unsub()

	if !s.RemoveNode(txt) {
		t.Fatal("expected remove to succeed")
	}
	st := s.GetState()
	if len(st.Edges) != 1 || len(st.Nodes) != 2 {
		t.Fatalf("unexpected graph after remove: %d nodes, %d edges", len(st.Nodes), len(st.Edges))
	}
	if st.Selection != "" {
		t.Errorf("expected selection cleared, got %q", st.Selection)
	}
	if n, _ := st.Node(gen); n.Data.SourceNodeContent != "" {
		t.Errorf("expected shadow cleared on surviving target, got %q", n.Data.SourceNodeContent)
	}
	if got.Kind != EventNodeRemoved || len(got.Removed) != 1 || got.Removed[0] != txt {
		t.Errorf("unexpected event %+v", got)
	}
	if s.RemoveNode(txt) {
		t.Error("removing a missing node should fail")
	}
}

func TestUpdateNode_RepropagatesDownstream(t *testing.T) {
	s := newTestStore()
	img := s.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{})
	gen := s.AddNode(graph.CategoryImageToImage, graph.Position{}, graph.NodeData{})
	s.Connect(img, "", gen, "")

	url := "https://x/late.png"
	if !s.UpdateNode(img, graph.DataPatch{ImageURL: &url}) {
		t.Fatal("expected update to succeed")
	}
	if got := mustNode(t, s, gen).Data.SourceImageURL; got != url {
		t.Errorf("sourceImageUrl = %q, want %q", got, url)
	}
	if s.UpdateNode(img, graph.DataPatch{}) {
		t.Error("empty patch should be rejected")
	}
}

func TestDuplicateIndependence(t *testing.T) {
	s := newTestStore()
	a := s.AddNode(graph.CategoryText, graph.Position{X: 10, Y: 10}, graph.NodeData{
		Content: "orig",
		Extra:   map[string]any{"tags": []any{"x"}},
	})
	dup := s.DuplicateNode(a)
	if dup == "" {
		t.Fatal("expected duplicate to succeed")
	}

	d := mustNode(t, s, dup)
	if d.Position != (graph.Position{X: 50, Y: 50}) {
		t.Errorf("duplicate position = %+v", d.Position)
	}
	if !d.Selected || !d.Fresh {
		t.Errorf("expected duplicate selected and fresh, got %+v", d)
	}
	if s.GetState().Selection != dup {
		t.Errorf("expected selection to move to duplicate")
	}

	content := "changed"
	s.UpdateNode(dup, graph.DataPatch{Content: &content, Extra: map[string]any{"tags": []any{"y"}}})

	orig := mustNode(t, s, a)
	if orig.Data.Content != "orig" {
		t.Errorf("original content changed to %q", orig.Data.Content)
	}
	if diff := cmp.Diff([]any{"x"}, orig.Data.Extra["tags"]); diff != "" {
		t.Errorf("original extra changed (-want +got):\n%s", diff)
	}
}

func TestDuplicate_DropsShadowFields(t *testing.T) {
	s := newTestStore()
	txt := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := s.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	s.Connect(txt, "", gen, "")

	dup := s.DuplicateNode(gen)
	if mustNode(t, s, dup).Data.HasShadow() {
		t.Error("duplicate has no incoming edges and must not carry shadow fields")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	s := newTestStore()
	txt := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "a fox"})
	gen := s.AddNode(graph.CategoryTextToImage, graph.Position{X: 300}, graph.NodeData{})
	s.Connect(txt, "", gen, "")
	s.MoveNode(gen, graph.Position{X: 320, Y: 40})
	s.DuplicateNode(txt)
	s.AddNode(graph.CategoryRender, graph.Position{X: 600}, graph.NodeData{})

	before := s.Snapshot()
	undone := 0
	for s.Undo() {
		undone++
	}
	if undone != 6 {
		t.Fatalf("expected 6 undo steps, got %d", undone)
	}
	if st := s.GetState(); len(st.Nodes) != 0 || len(st.Edges) != 0 {
		t.Fatalf("expected empty graph after full undo, got %+v", st)
	}
	for i := 0; i < undone; i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
	}
	if s.CanRedo() {
		t.Error("expected redo stack drained")
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("round trip mismatch (-before +after):\n%s", diff)
	}
}

func TestMutationAfterUndoClearsRedo(t *testing.T) {
	s := newTestStore()
	s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{})
	s.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{})
	s.Undo()
	if !s.CanRedo() {
		t.Fatal("expected redo after undo")
	}
	s.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	if s.CanRedo() {
		t.Error("fresh mutation must clear redo")
	}
}

func TestUndo_KeepsLiveGenerationRecord(t *testing.T) {
	s := newTestStore()
	r := s.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	s.MoveNode(r, graph.Position{X: 5})
	s.UpdateGeneration(r, func(rec *graph.GenerationRecord) bool {
		rec.State = graph.GenerationComplete
		rec.ArtifactURL = "done.png"
		return true
	})

	s.Undo()
	n := mustNode(t, s, r)
	if n.Position.X != 0 {
		t.Fatalf("expected move undone, got %+v", n.Position)
	}
	if n.Data.Generation == nil || n.Data.Generation.ArtifactURL != "done.png" {
		t.Errorf("expected live generation record kept, got %+v", n.Data.Generation)
	}
}

func TestUndo_SettlesRestoredGeneratingRecord(t *testing.T) {
	s := newTestStore()
	r := s.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	s.UpdateGeneration(r, func(rec *graph.GenerationRecord) bool {
		rec.State = graph.GenerationGenerating
		rec.TotalTicks = 5
		rec.RemainingTicks = 3
		rec.RequestID = "req"
		return true
	})
	s.RemoveNode(r)
	s.Undo()

	rec := mustNode(t, s, r).Data.Generation
	if rec == nil || rec.State != graph.GenerationIdle || rec.RemainingTicks != 5 || rec.RequestID != "" {
		t.Errorf("expected settled idle record, got %+v", rec)
	}
}

func TestUndo_AnnouncesRemovedNodes(t *testing.T) {
	s := newTestStore()
	r := s.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	var got Event
	s.Subscribe(func(ev Event) { got = ev })
	s.Undo()
	if got.Kind != EventHistoryApplied || len(got.Removed) != 1 || got.Removed[0] != r {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestSelection(t *testing.T) {
	s := newTestStore()
	a := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{})
	b := s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{})
	undoBefore, _ := s.history.Len()

	if !s.SetSelection(a) || !s.SetSelection(b) {
		t.Fatal("expected selection to succeed")
	}
	st := s.GetState()
	if st.Selection != b {
		t.Errorf("selection = %q, want %q", st.Selection, b)
	}
	for _, n := range st.Nodes {
		if n.Selected != (n.ID == b) {
			t.Errorf("node %s selected=%v", n.ID, n.Selected)
		}
	}
	if s.SetSelection("ghost") {
		t.Error("selecting a missing node should fail")
	}
	if !s.SetSelection("") || s.GetState().Selection != "" {
		t.Error("expected empty selection to clear")
	}
	if undo, _ := s.history.Len(); undo != undoBefore {
		t.Error("selection must not push history")
	}
}

func TestListenerMayReenterStore(t *testing.T) {
	s := newTestStore()
	calls := 0
	unsub := s.Subscribe(func(ev Event) {
		calls++
		_ = s.GetState()
		if ev.Kind == EventNodeAdded {
			s.SetSelection(ev.NodeIDs[0])
		}
	})
	s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{})
	unsub()
	unsub()
	s.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{})
	if calls != 2 {
		t.Errorf("expected 2 listener calls (add + nested selection), got %d", calls)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := s.AddNode(graph.CategoryText, graph.Position{X: float64(i)}, graph.NodeData{})
			s.MoveNode(id, graph.Position{X: float64(i), Y: 1})
			_ = s.GetState()
		}(i)
	}
	wg.Wait()
	if got := len(s.GetState().Nodes); got != 20 {
		t.Errorf("expected 20 nodes, got %d", got)
	}
}

func TestAddNode_StripsShadowAndNonPlainData(t *testing.T) {
	s := newTestStore()
	id := s.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{
		SourceNodeContent: "forged",
		Extra:             map[string]any{"cb": func() {}, "ok": "v"},
	})
	n := mustNode(t, s, id)
	if n.Data.HasShadow() {
		t.Error("shadow fields must not be authored")
	}
	if diff := cmp.Diff(map[string]any{"ok": "v"}, n.Data.Extra); diff != "" {
		t.Errorf("extra mismatch (-want +got):\n%s", diff)
	}
	if s.AddNode(graph.Category("audio"), graph.Position{}, graph.NodeData{}) != "" {
		t.Error("unknown category should be rejected")
	}
}
