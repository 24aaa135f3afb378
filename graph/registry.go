// ABOUTME: Node type registry: the closed set of node categories and their port capabilities.
// ABOUTME: Pure lookup tables for input/output ports, sizes, and media kinds; no side effects.
package graph

import "fmt"

// Category is the closed tag that determines a node's port capabilities.
type Category string

const (
	CategoryText         Category = "text"
	CategoryImage        Category = "image"
	CategoryTextToImage  Category = "text-to-image"
	CategoryImageToImage Category = "image-to-image"
	CategoryTextToVideo  Category = "text-to-video"
	CategoryImageToVideo Category = "image-to-video"
	CategoryRender       Category = "render"
)

// Port handles.
const (
	HandleText   = "text"
	HandleImage  = "image"
	HandleVideo  = "video"
	HandleOutput = "output"
)

// MediaKind tags a generated artifact.
type MediaKind string

const (
	KindNone  MediaKind = ""
	KindText  MediaKind = "text"
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Capabilities is the port capability record of a category.
type Capabilities struct {
	AcceptsText  bool `json:"acceptsText"`
	AcceptsImage bool `json:"acceptsImage"`
	OutputsText  bool `json:"outputsText"`
	OutputsImage bool `json:"outputsImage"`
	OutputsVideo bool `json:"outputsVideo"`
}

// Size is the default on-canvas footprint of a node.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type registryEntry struct {
	caps  Capabilities
	size  Size
	label string
}

// registry is the exhaustive capability table. Every Category constant has an entry.
var registry = map[Category]registryEntry{
	CategoryText: {
		caps:  Capabilities{OutputsText: true},
		size:  Size{Width: 24, Height: 6},
		label: "Text",
	},
	CategoryImage: {
		caps:  Capabilities{OutputsImage: true},
		size:  Size{Width: 24, Height: 6},
		label: "Image",
	},
	CategoryTextToImage: {
		caps:  Capabilities{AcceptsText: true, OutputsImage: true},
		size:  Size{Width: 28, Height: 7},
		label: "Text to Image",
	},
	CategoryImageToImage: {
		caps:  Capabilities{AcceptsText: true, AcceptsImage: true, OutputsImage: true},
		size:  Size{Width: 28, Height: 7},
		label: "Image to Image",
	},
	CategoryTextToVideo: {
		caps:  Capabilities{AcceptsText: true, OutputsVideo: true},
		size:  Size{Width: 28, Height: 7},
		label: "Text to Video",
	},
	CategoryImageToVideo: {
		caps:  Capabilities{AcceptsText: true, AcceptsImage: true, OutputsVideo: true},
		size:  Size{Width: 28, Height: 7},
		label: "Image to Video",
	},
	CategoryRender: {
		caps:  Capabilities{AcceptsText: true, AcceptsImage: true},
		size:  Size{Width: 32, Height: 9},
		label: "Render",
	},
}

// categoryOrder is the canonical listing order used by menus and tests.
var categoryOrder = []Category{
	CategoryText,
	CategoryImage,
	CategoryTextToImage,
	CategoryImageToImage,
	CategoryTextToVideo,
	CategoryImageToVideo,
	CategoryRender,
}

// Categories returns every category in canonical order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory converts a boundary string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := registry[c]; !ok {
		return "", fmt.Errorf("unknown node category %q", s)
	}
	return c, nil
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	_, ok := registry[c]
	return ok
}

// Label returns the human-readable name of the category.
func (c Category) Label() string {
	return entry(c).label
}

func entry(c Category) registryEntry {
	e, ok := registry[c]
	if !ok {
		panic(fmt.Sprintf("graph: unknown category %q", c))
	}
	return e
}

// CapabilitiesOf returns the capability record for a category.
// Unknown categories are a programming error and panic.
func CapabilitiesOf(c Category) Capabilities {
	return entry(c).caps
}

// DefaultSize returns the default footprint used for hit testing.
func DefaultSize(c Category) Size {
	return entry(c).size
}

// IsSink reports whether c is the render/output category.
func IsSink(c Category) bool {
	return c == CategoryRender
}

// IsProducer reports whether the category emits any output.
func IsProducer(c Category) bool {
	caps := CapabilitiesOf(c)
	return caps.OutputsText || caps.OutputsImage || caps.OutputsVideo
}

// IsGenerator reports whether the category both consumes inputs and produces
// an artifact through the generation collaborator.
func IsGenerator(c Category) bool {
	caps := CapabilitiesOf(c)
	consumes := caps.AcceptsText || caps.AcceptsImage
	return consumes && (caps.OutputsImage || caps.OutputsVideo)
}

// OutputKind returns the media kind a category produces, or KindNone.
func OutputKind(c Category) MediaKind {
	caps := CapabilitiesOf(c)
	switch {
	case caps.OutputsImage:
		return KindImage
	case caps.OutputsText:
		return KindText
	case caps.OutputsVideo:
		return KindVideo
	}
	return KindNone
}

// DefaultOutputPort resolves a category's output handle: image producers use
// "image", then text, then video, otherwise the generic "output".
func DefaultOutputPort(c Category) string {
	switch OutputKind(c) {
	case KindImage:
		return HandleImage
	case KindText:
		return HandleText
	case KindVideo:
		return HandleVideo
	}
	return HandleOutput
}

// DefaultInputPorts lists the input handles a category renders. The sink
// renders one port per producible media kind.
func DefaultInputPorts(c Category) []string {
	if IsSink(c) {
		return []string{HandleText, HandleImage, HandleVideo}
	}
	caps := CapabilitiesOf(c)
	var ports []string
	if caps.AcceptsText {
		ports = append(ports, HandleText)
	}
	if caps.AcceptsImage {
		ports = append(ports, HandleImage)
	}
	return ports
}

// HasInputPort reports whether handle is one of the category's rendered input ports.
func HasInputPort(c Category, handle string) bool {
	for _, p := range DefaultInputPorts(c) {
		if p == handle {
			return true
		}
	}
	return false
}
