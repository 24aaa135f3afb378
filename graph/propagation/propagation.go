// ABOUTME: Propagation engine: computes the shadow-field patch a target receives or loses on edge changes.
// ABOUTME: Pure functions over node snapshots; never reaches into the graph store.
package propagation

import "github.com/2389-research/flowcanvas/graph"

// Field names a shadow field of NodeData.
type Field int

const (
	FieldNone Field = iota
	FieldContent
	FieldImage
	FieldVideo
)

func (f Field) String() string {
	switch f {
	case FieldContent:
		return "sourceNodeContent"
	case FieldImage:
		return "sourceImageUrl"
	case FieldVideo:
		return "sourceVideoUrl"
	}
	return "none"
}

// Patch is a set of shadow-field writes. Nil fields are untouched; a pointer
// to "" clears the field.
type Patch struct {
	SourceNodeContent *string
	SourceImageURL    *string
	SourceVideoURL    *string
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool {
	return p.SourceNodeContent == nil && p.SourceImageURL == nil && p.SourceVideoURL == nil
}

// Apply writes the patch into d. This is the only writer of shadow fields.
func (p Patch) Apply(d *graph.NodeData) {
	if p.SourceNodeContent != nil {
		d.SourceNodeContent = *p.SourceNodeContent
	}
	if p.SourceImageURL != nil {
		d.SourceImageURL = *p.SourceImageURL
	}
	if p.SourceVideoURL != nil {
		d.SourceVideoURL = *p.SourceVideoURL
	}
}

// Merge returns p overlaid with o; fields set in o win.
func (p Patch) Merge(o Patch) Patch {
	out := p
	if o.SourceNodeContent != nil {
		out.SourceNodeContent = o.SourceNodeContent
	}
	if o.SourceImageURL != nil {
		out.SourceImageURL = o.SourceImageURL
	}
	if o.SourceVideoURL != nil {
		out.SourceVideoURL = o.SourceVideoURL
	}
	return out
}

// Fields lists the fields the patch writes, in declaration order.
func (p Patch) Fields() []Field {
	var out []Field
	if p.SourceNodeContent != nil {
		out = append(out, FieldContent)
	}
	if p.SourceImageURL != nil {
		out = append(out, FieldImage)
	}
	if p.SourceVideoURL != nil {
		out = append(out, FieldVideo)
	}
	return out
}

func set(f Field, v string) Patch {
	switch f {
	case FieldContent:
		return Patch{SourceNodeContent: &v}
	case FieldImage:
		return Patch{SourceImageURL: &v}
	case FieldVideo:
		return Patch{SourceVideoURL: &v}
	}
	return Patch{}
}

// FieldFor returns the shadow field an edge from a source of category src
// into target on handle writes. Sinks fan in by source kind regardless of
// handle; other targets only touch the field matching the handle.
func FieldFor(src graph.Category, target graph.Category, targetHandle string) Field {
	if graph.IsSink(target) {
		switch graph.OutputKind(src) {
		case graph.KindText:
			return FieldContent
		case graph.KindImage:
			return FieldImage
		case graph.KindVideo:
			return FieldVideo
		}
		return FieldNone
	}
	switch targetHandle {
	case graph.HandleText:
		return FieldContent
	case graph.HandleImage:
		return FieldImage
	case graph.HandleVideo:
		return FieldVideo
	}
	return FieldNone
}

// OnConnect returns the patch target receives when source is connected to it.
func OnConnect(source, target graph.Node, targetHandle string) Patch {
	f := FieldFor(source.Category, target.Category, targetHandle)
	if f == FieldNone {
		return Patch{}
	}
	_, value := source.Output()
	return set(f, value)
}

// OnDisconnect returns the patch clearing the field an edge from a source of
// category sourceCategory supplied to target.
func OnDisconnect(sourceCategory graph.Category, target graph.Node, targetHandle string) Patch {
	return set(FieldFor(sourceCategory, target.Category, targetHandle), "")
}

// Link is a surviving incoming edge of a target, with its source node.
type Link struct {
	Source       graph.Node
	TargetHandle string
}

// Refill recomputes every field cleared lists from the surviving incoming
// links of target, so a cleared field keeps content another edge still
// supplies. remaining is in connection order and the latest link wins.
func Refill(cleared Patch, target graph.Node, remaining []Link) Patch {
	out := cleared
	for _, f := range cleared.Fields() {
		for i := len(remaining) - 1; i >= 0; i-- {
			l := remaining[i]
			if FieldFor(l.Source.Category, target.Category, l.TargetHandle) != f {
				continue
			}
			out = out.Merge(OnConnect(l.Source, target, l.TargetHandle))
			break
		}
	}
	return out
}
