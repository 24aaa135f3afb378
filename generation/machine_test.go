// ABOUTME: Tests for the generation state machine: gating, countdown, completion, cancel, deletion, and reuse.
// ABOUTME: Ticks are driven by hand through an injected ticker so every transition is deterministic.
package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/graph"
)

// manualTicker hands each task its own channel and lets the test send ticks.
type manualTicker struct {
	mu    sync.Mutex
	chans []chan time.Time
}

func (mt *manualTicker) start(time.Duration) (<-chan time.Time, func()) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	ch := make(chan time.Time)
	mt.chans = append(mt.chans, ch)
	return ch, func() {}
}

// tick delivers one tick to the most recently started task.
func (mt *manualTicker) tick(t *testing.T) {
	t.Helper()
	mt.mu.Lock()
	if len(mt.chans) == 0 {
		mt.mu.Unlock()
		t.Fatal("no task started")
	}
	ch := mt.chans[len(mt.chans)-1]
	mt.mu.Unlock()
	select {
	case ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("tick was not consumed")
	}
}

func (mt *manualTicker) tickN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		mt.tick(t)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func setup(t *testing.T, gen Generator) (*canvas.Store, *Machine, *manualTicker) {
	t.Helper()
	store := canvas.New()
	mt := &manualTicker{}
	m := New(store, gen, WithTicker(mt.start))
	t.Cleanup(m.Close)
	return store, m, mt
}

func record(t *testing.T, store *canvas.Store, id string) graph.GenerationRecord {
	t.Helper()
	n, ok := store.Node(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	if n.Data.Generation == nil {
		t.Fatalf("node %s has no generation record", id)
	}
	return *n.Data.Generation
}

func TestGating_ImageSourceMustHoldContent(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	c := store.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{})
	d := store.AddNode(graph.CategoryImageToImage, graph.Position{X: 300}, graph.NodeData{})
	store.Connect(c, "image", d, "image")

	if _, ok := m.Submit(context.Background(), d); ok {
		t.Fatal("expected submit rejected with an empty image source")
	}
	if n := len(store.GetState().Nodes); n != 2 {
		t.Fatalf("rejected submit must not create nodes, got %d", n)
	}

	url := "https://x/c.png"
	store.UpdateNode(c, graph.DataPatch{ImageURL: &url})
	if _, ok := m.Submit(context.Background(), d); !ok {
		t.Fatal("expected submit accepted once the source has an image")
	}
}

func TestGating_TextGeneratorNeedsTextSource(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	gen := store.AddNode(graph.CategoryTextToVideo, graph.Position{}, graph.NodeData{Content: "own prompt"})
	if _, ok := m.Submit(context.Background(), gen); ok {
		t.Fatal("expected rejection without a connected text producer")
	}

	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "a wave"})
	store.Connect(txt, "text", gen, "text")
	if _, ok := m.Submit(context.Background(), gen); !ok {
		t.Fatal("expected submit accepted with a text producer")
	}
}

func TestSubmit_RejectsNonGenerators(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "x"})
	r := store.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	if _, ok := m.Submit(context.Background(), txt); ok {
		t.Error("text nodes cannot be submitted")
	}
	if _, ok := m.Submit(context.Background(), r); ok {
		t.Error("a sink with no upstream generator cannot be submitted")
	}
	if _, ok := m.Submit(context.Background(), "ghost"); ok {
		t.Error("missing nodes cannot be submitted")
	}
}

func TestScenarioB_GenerateImage(t *testing.T) {
	store, m, mt := setup(t, Simulated{})
	c := store.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{})
	d := store.AddNode(graph.CategoryImageToImage, graph.Position{X: 300}, graph.NodeData{})
	store.Connect(c, "image", d, "image")

	if _, ok := m.Submit(context.Background(), d); ok {
		t.Fatal("expected rejection before the image is set")
	}
	url := "https://x/c.png"
	store.UpdateNode(c, graph.DataPatch{ImageURL: &url})

	sink, ok := m.Submit(context.Background(), d)
	if !ok {
		t.Fatal("expected submit accepted")
	}
	rec := record(t, store, sink)
	if rec.State != graph.GenerationGenerating || rec.RemainingTicks != DefaultTicks {
		t.Fatalf("unexpected record after submit: %+v", rec)
	}
	if edges := store.IncomingEdges(sink); len(edges) != 1 || edges[0].Source != d {
		t.Fatalf("expected new sink wired to producer, got %+v", edges)
	}

	mt.tickN(t, DefaultTicks-1)
	waitFor(t, "countdown", func() bool { return record(t, store, sink).RemainingTicks == 1 })
	if st := record(t, store, sink).State; st != graph.GenerationGenerating {
		t.Fatalf("expected still generating after 4 ticks, got %s", st)
	}

	mt.tick(t)
	waitFor(t, "completion", func() bool { return record(t, store, sink).State == graph.GenerationComplete })

	rec = record(t, store, sink)
	if rec.ArtifactURL == "" || rec.Kind != graph.KindImage || !rec.Completed || rec.RequestID != "" {
		t.Errorf("unexpected completed record %+v", rec)
	}
	producer, _ := store.Node(d)
	if producer.Data.ImageURL != rec.ArtifactURL {
		t.Errorf("producer output = %q, want %q", producer.Data.ImageURL, rec.ArtifactURL)
	}
	sinkNode, _ := store.Node(sink)
	if sinkNode.Data.SourceImageURL != rec.ArtifactURL {
		t.Errorf("sink shadow = %q, want %q", sinkNode.Data.SourceImageURL, rec.ArtifactURL)
	}
	waitFor(t, "task release", func() bool { return !m.Generating(sink) })
}

func TestScenarioC_CancelResets(t *testing.T) {
	store, m, mt := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")

	sink, ok := m.Submit(context.Background(), gen)
	if !ok {
		t.Fatal("expected submit accepted")
	}
	mt.tickN(t, 2)
	waitFor(t, "two ticks", func() bool { return record(t, store, sink).RemainingTicks == 3 })

	if !m.Cancel(sink) {
		t.Fatal("expected cancel to succeed")
	}
	rec := record(t, store, sink)
	if rec.State != graph.GenerationIdle || rec.ArtifactURL != "" || rec.RemainingTicks != DefaultTicks {
		t.Errorf("unexpected record after cancel: %+v", rec)
	}
	if m.Generating(sink) {
		t.Error("expected task released")
	}
	if m.Cancel(sink) {
		t.Error("cancel is only valid while generating")
	}
}

func TestCancel_ByProducerID(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)

	if !m.Cancel(gen) {
		t.Fatal("expected cancel through the producer to succeed")
	}
	if record(t, store, sink).State != graph.GenerationIdle {
		t.Error("expected sink idle")
	}
}

func TestDeletingSinkReleasesTask(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)

	store.RemoveNode(sink)
	if m.Generating(sink) {
		t.Fatal("expected task released on deletion")
	}
}

func TestDeletingProducerSettlesSink(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)

	store.RemoveNode(gen)
	if m.Generating(sink) {
		t.Fatal("expected task released when its producer is deleted")
	}
	if st := record(t, store, sink).State; st != graph.GenerationIdle {
		t.Errorf("expected orphaned sink idle, got %s", st)
	}
}

func TestUndoRemovingSinkReleasesTask(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)

	store.Undo() // the auto-wired edge
	store.Undo() // the auto-created sink
	if _, ok := store.Node(sink); ok {
		t.Fatal("expected sink undone")
	}
	if m.Generating(sink) {
		t.Error("expected task released when undo removes its sink")
	}
}

func TestLateTickIsDiscarded(t *testing.T) {
	store, m, _ := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)
	before := record(t, store, sink)

	stale := &task{sinkID: sink, producerID: gen, requestID: "stale", started: time.Now(), cancel: func() {}}
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	done := make(chan struct{})
	m.wg.Add(1)
	go func() {
		m.run(context.Background(), stale, ch, func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale task did not exit")
	}

	after := record(t, store, sink)
	if after.RemainingTicks != before.RemainingTicks || after.RequestID != before.RequestID {
		t.Errorf("stale tick mutated the record: before %+v after %+v", before, after)
	}
	if !m.Generating(sink) {
		t.Error("the live task must survive a stale tick")
	}
}

func TestReusePolicy(t *testing.T) {
	store, m, mt := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	idle := store.AddNode(graph.CategoryRender, graph.Position{}, graph.NodeData{})
	store.Connect(gen, "", idle, "")

	first, _ := m.Submit(context.Background(), gen)
	if first != idle {
		t.Fatalf("expected the idle never-submitted sink reused, got %s", first)
	}

	// Submitted but never completed: reused after cancel.
	m.Cancel(first)
	second, _ := m.Submit(context.Background(), gen)
	if second != idle {
		t.Fatalf("expected the submitted-but-incomplete sink reused, got %s", second)
	}

	mt.tickN(t, DefaultTicks)
	waitFor(t, "completion", func() bool { return record(t, store, idle).State == graph.GenerationComplete })
	waitFor(t, "task release", func() bool { return !m.Generating(idle) })

	third, ok := m.Submit(context.Background(), gen)
	if !ok || third == idle {
		t.Fatalf("expected a new sink once the existing one completed, got %s", third)
	}
	if n := len(store.GetState().Nodes); n != 4 {
		t.Errorf("expected exactly one new sink, got %d nodes", n)
	}
}

func TestRegenerateFromSink(t *testing.T) {
	store, m, mt := setup(t, Simulated{})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)
	mt.tickN(t, DefaultTicks)
	waitFor(t, "completion", func() bool { return record(t, store, sink).State == graph.GenerationComplete })
	waitFor(t, "task release", func() bool { return !m.Generating(sink) })

	again, ok := m.Submit(context.Background(), sink)
	if !ok || again != sink {
		t.Fatalf("expected regenerate on the same sink, got %s (ok=%v)", again, ok)
	}
	if st := record(t, store, sink).State; st != graph.GenerationGenerating {
		t.Errorf("expected generating, got %s", st)
	}
	if _, ok := m.Submit(context.Background(), sink); ok {
		t.Error("a generating sink cannot be resubmitted")
	}
}

func TestFailureReturnsToIdle(t *testing.T) {
	boom := errors.New("quota exceeded")
	store, m, mt := setup(t, GeneratorFunc(func(context.Context, Request) (Result, error) {
		return Result{}, boom
	}))
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)

	mt.tickN(t, DefaultTicks)
	waitFor(t, "failure", func() bool { return record(t, store, sink).LastError != "" })
	rec := record(t, store, sink)
	if rec.State != graph.GenerationIdle || rec.LastError != boom.Error() || rec.Completed {
		t.Errorf("unexpected record after failure: %+v", rec)
	}
}

func TestGeneratorReceivesInputs(t *testing.T) {
	got := make(chan Request, 1)
	store, m, mt := setup(t, GeneratorFunc(func(_ context.Context, req Request) (Result, error) {
		got <- req
		return Result{ArtifactURL: "https://x/v.mp4"}, nil
	}))
	img := store.AddNode(graph.CategoryImage, graph.Position{}, graph.NodeData{ImageURL: "https://x/in.png"})
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "zoom in"})
	gen := store.AddNode(graph.CategoryImageToVideo, graph.Position{}, graph.NodeData{ModelID: "kling", Seed: 9})
	store.Connect(img, "", gen, "")
	store.Connect(txt, "", gen, "")

	sink, ok := m.Submit(context.Background(), gen)
	if !ok {
		t.Fatal("expected submit accepted")
	}
	mt.tickN(t, DefaultTicks)

	var req Request
	select {
	case req = <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("generator not called")
	}
	if req.Kind != graph.KindVideo || req.Inputs.Prompt != "zoom in" || req.Inputs.ImageURL != "https://x/in.png" ||
		req.Inputs.ModelID != "kling" || req.Inputs.Seed != 9 || req.SinkID != sink {
		t.Errorf("unexpected request %+v", req)
	}
	waitFor(t, "completion", func() bool { return record(t, store, sink).Kind == graph.KindVideo })
}

func TestCloseCancelsTasks(t *testing.T) {
	store := canvas.New()
	mt := &manualTicker{}
	m := New(store, Simulated{}, WithTicker(mt.start))
	txt := store.AddNode(graph.CategoryText, graph.Position{}, graph.NodeData{Content: "p"})
	gen := store.AddNode(graph.CategoryTextToImage, graph.Position{}, graph.NodeData{})
	store.Connect(txt, "", gen, "")
	sink, _ := m.Submit(context.Background(), gen)

	m.Close()
	m.Close()
	if m.Generating(sink) {
		t.Error("expected no live tasks after close")
	}
	if record(t, store, sink).State != graph.GenerationIdle {
		t.Error("expected sink settled on close")
	}
	if _, ok := m.Submit(context.Background(), gen); ok {
		t.Error("a closed machine must reject submissions")
	}
}

func TestSimulated(t *testing.T) {
	res, err := Simulated{}.Generate(context.Background(), Request{RequestID: "r1", Kind: graph.KindVideo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ArtifactURL != DefaultSimulatedBaseURL+"/video/r1.mp4" || res.Kind != graph.KindVideo {
		t.Errorf("unexpected result %+v", res)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Simulated{Latency: time.Hour}).Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
