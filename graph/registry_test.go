// ABOUTME: Tests for the node type registry: capability table, port resolution, and category parsing.
// ABOUTME: Table-driven over every category so a new category cannot slip in without a row.
package graph

import (
	"reflect"
	"testing"
)

func TestCategories_AllRegistered(t *testing.T) {
	cats := Categories()
	if len(cats) != len(registry) {
		t.Fatalf("expected %d categories, got %d", len(registry), len(cats))
	}
	for _, c := range cats {
		if !c.Valid() {
			t.Errorf("category %q not valid", c)
		}
		if c.Label() == "" {
			t.Errorf("category %q has no label", c)
		}
	}
}

func TestDefaultOutputPort(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryText, HandleText},
		{CategoryImage, HandleImage},
		{CategoryTextToImage, HandleImage},
		{CategoryImageToImage, HandleImage},
		{CategoryTextToVideo, HandleVideo},
		{CategoryImageToVideo, HandleVideo},
		{CategoryRender, HandleOutput},
	}
	for _, tt := range tests {
		if got := DefaultOutputPort(tt.cat); got != tt.want {
			t.Errorf("DefaultOutputPort(%s) = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestDefaultInputPorts(t *testing.T) {
	tests := []struct {
		cat  Category
		want []string
	}{
		{CategoryText, nil},
		{CategoryImage, nil},
		{CategoryTextToImage, []string{HandleText}},
		{CategoryImageToImage, []string{HandleText, HandleImage}},
		{CategoryTextToVideo, []string{HandleText}},
		{CategoryImageToVideo, []string{HandleText, HandleImage}},
		{CategoryRender, []string{HandleText, HandleImage, HandleVideo}},
	}
	for _, tt := range tests {
		got := DefaultInputPorts(tt.cat)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DefaultInputPorts(%s) = %v, want %v", tt.cat, got, tt.want)
		}
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		cat       Category
		sink      bool
		producer  bool
		generator bool
		kind      MediaKind
	}{
		{CategoryText, false, true, false, KindText},
		{CategoryImage, false, true, false, KindImage},
		{CategoryTextToImage, false, true, true, KindImage},
		{CategoryImageToImage, false, true, true, KindImage},
		{CategoryTextToVideo, false, true, true, KindVideo},
		{CategoryImageToVideo, false, true, true, KindVideo},
		{CategoryRender, true, false, false, KindNone},
	}
	for _, tt := range tests {
		if got := IsSink(tt.cat); got != tt.sink {
			t.Errorf("IsSink(%s) = %v, want %v", tt.cat, got, tt.sink)
		}
		if got := IsProducer(tt.cat); got != tt.producer {
			t.Errorf("IsProducer(%s) = %v, want %v", tt.cat, got, tt.producer)
		}
		if got := IsGenerator(tt.cat); got != tt.generator {
			t.Errorf("IsGenerator(%s) = %v, want %v", tt.cat, got, tt.generator)
		}
		if got := OutputKind(tt.cat); got != tt.kind {
			t.Errorf("OutputKind(%s) = %q, want %q", tt.cat, got, tt.kind)
		}
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("image-to-video")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != CategoryImageToVideo {
		t.Errorf("expected image-to-video, got %q", c)
	}
	if _, err := ParseCategory("audio"); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestCapabilitiesOf_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown category")
		}
	}()
	CapabilitiesOf(Category("audio"))
}
