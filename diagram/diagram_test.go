// ABOUTME: Tests for DOT export, Graphviz rendering dispatch, and the render cache.
// ABOUTME: Graphviz itself is only invoked when it is installed.
package diagram

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389-research/flowcanvas/graph"
)

func sampleGraph() ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{
		{ID: "t2i", Category: graph.CategoryTextToImage, Position: graph.Position{X: 40, Y: 2},
			Data: graph.NodeData{ModelID: "dall-e-3", Generation: &graph.GenerationRecord{State: graph.GenerationGenerating}}},
		{ID: "txt", Category: graph.CategoryText, Data: graph.NodeData{Content: "a \"red\"\nfox"}},
	}
	edges := []graph.Edge{
		{ID: graph.EdgeID("txt", "text", "t2i", "text"), Source: "txt", SourceHandle: "text", Target: "t2i", TargetHandle: "text"},
	}
	return nodes, edges
}

func TestToDOT(t *testing.T) {
	nodes, edges := sampleGraph()
	got := ToDOT(nodes, edges, Options{Name: "my canvas", Status: true})

	for _, want := range []string{
		`digraph "my canvas" {`,
		`txt [fillcolor="` + ColorIdle + `", label="Text\na \"red\" fox"]`,
		`t2i [fillcolor="` + ColorGenerating + `", label="Text to Image\ndall-e-3"]`,
		`txt -> t2i [color="#1E88E5", label="text → text"]`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in:\n%s", want, got)
		}
	}
	// Sorted by id.
	if strings.Index(got, "t2i [") > strings.Index(got, "txt [") {
		t.Error("nodes are not sorted by id")
	}
	if strings.Contains(got, "pos=") {
		t.Error("positions should be omitted by default")
	}
}

func TestToDOTWithoutStatus(t *testing.T) {
	nodes, edges := sampleGraph()
	got := ToDOT(nodes, edges, Options{Positions: true})
	if strings.Contains(got, ColorGenerating) {
		t.Error("status colors should be off")
	}
	if !strings.Contains(got, `pos="40,-2!"`) {
		t.Errorf("expected a pinned position in:\n%s", got)
	}
	if !strings.HasPrefix(got, "digraph canvas {") {
		t.Errorf("default name not used:\n%s", got)
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		rec  *graph.GenerationRecord
		want string
	}{
		{nil, ColorIdle},
		{&graph.GenerationRecord{State: graph.GenerationIdle}, ColorIdle},
		{&graph.GenerationRecord{State: graph.GenerationGenerating}, ColorGenerating},
		{&graph.GenerationRecord{State: graph.GenerationComplete}, ColorComplete},
		{&graph.GenerationRecord{State: graph.GenerationIdle, LastError: "boom"}, ColorFailed},
	}
	for _, tt := range tests {
		if got := statusColor(tt.rec); got != tt.want {
			t.Errorf("statusColor(%+v) = %s, want %s", tt.rec, got, tt.want)
		}
	}
}

func TestQuoteID(t *testing.T) {
	tests := map[string]string{
		"abc_1":   "abc_1",
		"1abc":    `"1abc"`,
		"a-b":     `"a-b"`,
		"":        `""`,
		`say "x"`: `"say \"x\""`,
	}
	for in, want := range tests {
		if got := quoteID(in); got != want {
			t.Errorf("quoteID(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNodeLabelTruncates(t *testing.T) {
	n := graph.Node{Category: graph.CategoryText, Data: graph.NodeData{Content: strings.Repeat("x", previewLen+10)}}
	got := nodeLabel(n)
	if want := "Text\n" + strings.Repeat("x", previewLen) + "…"; got != want {
		t.Errorf("nodeLabel = %q", got)
	}
}

func TestEngineRender(t *testing.T) {
	ctx := context.Background()
	missing := Engine{lookPath: func(string) (string, error) { return "", errors.New("not found") }}

	out, err := missing.Render(ctx, "digraph g {}", "dot")
	if err != nil || string(out) != "digraph g {}" {
		t.Errorf("dot format = %q, %v", out, err)
	}
	if _, err := missing.Render(ctx, "digraph g {}", "pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := missing.Render(ctx, "digraph g {}", "svg"); !errors.Is(err, ErrGraphvizMissing) {
		t.Errorf("expected ErrGraphvizMissing, got %v", err)
	}
	if _, err := missing.Render(ctx, "", "dot"); err == nil {
		t.Error("expected an error for empty input")
	}
	if missing.GraphvizAvailable() {
		t.Error("GraphvizAvailable should follow lookPath")
	}
}

func TestEngineRenderSVG(t *testing.T) {
	var e Engine
	if !e.GraphvizAvailable() {
		t.Skip("graphviz not installed")
	}
	nodes, edges := sampleGraph()
	out, err := e.Render(context.Background(), ToDOT(nodes, edges, Options{}), "svg")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), "<svg") {
		t.Error("expected SVG output")
	}
}

func TestCache(t *testing.T) {
	var calls atomic.Int32
	render := func(_ context.Context, dotText, format string) ([]byte, error) {
		calls.Add(1)
		if format == "bad" {
			return nil, ErrUnsupportedFormat
		}
		return []byte(format + ":" + dotText), nil
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(render, time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := c.Render(ctx, "g", "svg")
		if err != nil || string(out) != "svg:g" {
			t.Fatalf("Render = %q, %v", out, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("render called %d times, want 1", calls.Load())
	}

	if _, err := c.Render(ctx, "g", "bad"); err == nil {
		t.Error("expected the render error")
	}
	if c.Len() != 1 {
		t.Errorf("errors must not be cached, Len = %d", c.Len())
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.Render(ctx, "h", "png"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Errorf("expired entry not swept, Len = %d", c.Len())
	}
	if _, err := c.Render(ctx, "g", "svg"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 4 {
		t.Errorf("expected a re-render after expiry, calls = %d", calls.Load())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Error("Clear left entries behind")
	}
}
