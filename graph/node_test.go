// ABOUTME: Tests for node data cloning, authored-field patches, and the plain-data decode boundary.
// ABOUTME: Verifies that clones never alias and that shadow keys cannot enter from outside.
package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNodeClone_Independent(t *testing.T) {
	n := Node{
		ID:       "a",
		Category: CategoryImage,
		Data: NodeData{
			ImageURL: "https://x/1.png",
			Extra:    map[string]any{"tags": []any{"a", "b"}, "crop": map[string]any{"w": 10.0}},
			Generation: &GenerationRecord{
				State: GenerationComplete, ArtifactURL: "u",
			},
		},
		Style: map[string]string{"color": "red"},
	}
	c := n.Clone()
	if diff := cmp.Diff(n, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Data.Extra["tags"].([]any)[0] = "z"
	c.Data.Extra["crop"].(map[string]any)["w"] = 99.0
	c.Data.Generation.ArtifactURL = "changed"
	c.Style["color"] = "blue"

	if n.Data.Extra["tags"].([]any)[0] != "a" {
		t.Error("extra slice aliased")
	}
	if n.Data.Extra["crop"].(map[string]any)["w"] != 10.0 {
		t.Error("extra map aliased")
	}
	if n.Data.Generation.ArtifactURL != "u" {
		t.Error("generation record aliased")
	}
	if n.Style["color"] != "red" {
		t.Error("style aliased")
	}
}

func TestNodeData_Authored(t *testing.T) {
	d := NodeData{
		Content:           "hi",
		SourceNodeContent: "up",
		SourceImageURL:    "img",
		SourceVideoURL:    "vid",
		Generation:        &GenerationRecord{State: GenerationIdle},
	}
	a := d.Authored()
	if a.HasShadow() {
		t.Errorf("expected no shadow fields, got %+v", a)
	}
	if a.Generation != nil {
		t.Error("expected generation record dropped")
	}
	if a.Content != "hi" {
		t.Errorf("content = %q, want %q", a.Content, "hi")
	}
	if !d.HasShadow() {
		t.Error("original should keep its shadow fields")
	}
}

func TestNodeData_Prompt(t *testing.T) {
	if got := (NodeData{Content: "own"}).Prompt(); got != "own" {
		t.Errorf("Prompt() = %q, want %q", got, "own")
	}
	if got := (NodeData{Content: "own", SourceNodeContent: "up"}).Prompt(); got != "up" {
		t.Errorf("Prompt() = %q, want %q", got, "up")
	}
}

func TestDataPatch_Apply(t *testing.T) {
	content := "new"
	seed := int64(7)
	d := NodeData{Content: "old", Extra: map[string]any{"keep": "x", "drop": "y"}}
	p := DataPatch{
		Content: &content,
		Seed:    &seed,
		Extra:   map[string]any{"drop": nil, "fn": func() {}, "n": 3},
	}
	if p.Empty() {
		t.Fatal("patch should not be empty")
	}
	p.Apply(&d)

	if d.Content != "new" || d.Seed != 7 {
		t.Errorf("unexpected data after patch: %+v", d)
	}
	want := map[string]any{"keep": "x", "n": 3.0}
	if diff := cmp.Diff(want, d.Extra); diff != "" {
		t.Errorf("extra mismatch (-want +got):\n%s", diff)
	}
	if !(DataPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

func TestPlain(t *testing.T) {
	ch := make(chan int)
	in := map[string]any{
		"s":    "str",
		"n":    int64(4),
		"fn":   func() {},
		"ch":   ch,
		"list": []any{"a", func() {}, 2},
		"nested": map[string]any{
			"ok":  true,
			"bad": &struct{}{},
		},
	}
	got, ok := Plain(in)
	if !ok {
		t.Fatal("expected map to be representable")
	}
	want := map[string]any{
		"s":      "str",
		"n":      4.0,
		"list":   []any{"a", 2.0},
		"nested": map[string]any{"ok": true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Plain mismatch (-want +got):\n%s", diff)
	}
	if _, ok := Plain(ch); ok {
		t.Error("channel should not be plain")
	}
}

func TestDecodeData_DropsShadowKeys(t *testing.T) {
	raw := map[string]any{
		"content":           "hello",
		"seed":              "42",
		"strength":          0.5,
		"sourceNodeContent": "forged",
		"sourceImageUrl":    "forged",
		"generation":        map[string]any{"state": "complete"},
		"aspect":            "16:9",
		"extra":             map[string]any{"note": "n"},
	}
	d, err := DecodeData(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Content != "hello" || d.Seed != 42 || d.Strength != 0.5 {
		t.Errorf("unexpected authored fields: %+v", d)
	}
	if d.HasShadow() || d.Generation != nil {
		t.Errorf("shadow keys leaked: %+v", d)
	}
	want := map[string]any{"aspect": "16:9", "note": "n"}
	if diff := cmp.Diff(want, d.Extra); diff != "" {
		t.Errorf("extra mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePatch(t *testing.T) {
	p, err := DecodePatch(map[string]any{
		"imageUrl":       "https://x/2.png",
		"sourceImageUrl": "forged",
		"extra":          map[string]any{"gone": nil},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ImageURL == nil || *p.ImageURL != "https://x/2.png" {
		t.Errorf("imageUrl not decoded: %+v", p)
	}
	if p.Content != nil {
		t.Error("absent key should stay nil")
	}
	if v, ok := p.Extra["gone"]; !ok || v != nil {
		t.Errorf("expected nil extra deletion, got %v", p.Extra)
	}
	if _, ok := p.Extra["sourceImageUrl"]; ok {
		t.Error("shadow key leaked into extra")
	}
}

func TestGenerationRecord_Settle(t *testing.T) {
	r := GenerationRecord{State: GenerationGenerating, RemainingTicks: 2, TotalTicks: 5, RequestID: "r", Submitted: true}
	r.Settle()
	if r.State != GenerationIdle || r.RemainingTicks != 5 || r.RequestID != "" || !r.Submitted {
		t.Errorf("unexpected settled record: %+v", r)
	}
	c := GenerationRecord{State: GenerationComplete, ArtifactURL: "u"}
	c.Settle()
	if c.State != GenerationComplete || c.ArtifactURL != "u" {
		t.Errorf("complete record should be untouched: %+v", c)
	}
}

func TestEdgeID(t *testing.T) {
	if got := EdgeID("a", "text", "b", "text"); got != "a:text->b:text" {
		t.Errorf("EdgeID = %q", got)
	}
}
