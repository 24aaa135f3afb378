// ABOUTME: Core graph types: Node, Edge, Position, NodeData with shadow fields, and GenerationRecord.
// ABOUTME: NodeData is a strict plain-data schema so cloning is total and snapshots never alias live state.
package graph

// Position is a point in canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Node is a typed content node on the canvas.
type Node struct {
	ID       string            `json:"id"`
	Category Category          `json:"category"`
	Position Position          `json:"position"`
	Data     NodeData          `json:"data"`
	Style    map[string]string `json:"style,omitempty"`
	Selected bool              `json:"selected"`
	// Fresh marks a node just created by duplicate or paste.
	Fresh bool `json:"fresh,omitempty"`
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Data = n.Data.Clone()
	out.Style = cloneStyle(n.Style)
	return out
}

// Output returns the media kind and value this node currently emits
// downstream. Generators emit the artifact written back on completion.
func (n Node) Output() (MediaKind, string) {
	switch OutputKind(n.Category) {
	case KindText:
		return KindText, n.Data.Content
	case KindImage:
		return KindImage, n.Data.ImageURL
	case KindVideo:
		return KindVideo, n.Data.VideoURL
	}
	return KindNone, ""
}

// Edge connects a source output handle to a target input handle.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// EdgeID returns the stable identifier for an edge between two handles.
// Slot exclusivity keeps it unique within a graph.
func EdgeID(source, sourceHandle, target, targetHandle string) string {
	return source + ":" + sourceHandle + "->" + target + ":" + targetHandle
}

// GenerationState is the lifecycle state of a sink's generation.
type GenerationState string

const (
	GenerationIdle       GenerationState = "idle"
	GenerationGenerating GenerationState = "generating"
	GenerationComplete   GenerationState = "complete"
)

// GenerationRecord is held in a sink-capable node's data.
type GenerationRecord struct {
	State          GenerationState `json:"state"`
	RemainingTicks int             `json:"remainingTicks"`
	TotalTicks     int             `json:"totalTicks"`
	ArtifactURL    string          `json:"artifactUrl,omitempty"`
	Kind           MediaKind       `json:"kind,omitempty"`
	RequestID      string          `json:"requestId,omitempty"`
	// Submitted and Completed are set on the first submission and first
	// completion and never cleared.
	Submitted bool   `json:"submitted"`
	Completed bool   `json:"completed"`
	LastError string `json:"lastError,omitempty"`
}

// Settle returns an in-flight record to Idle. Records restored from history
// have no task behind them, so they cannot stay Generating.
func (r *GenerationRecord) Settle() {
	if r.State != GenerationGenerating {
		return
	}
	r.State = GenerationIdle
	r.RemainingTicks = r.TotalTicks
	r.RequestID = ""
}

// NodeData is the data bag of a node. Shadow fields mirror upstream producers
// and are written only by the propagation engine.
type NodeData struct {
	Label    string         `json:"label,omitempty" mapstructure:"label"`
	Content  string         `json:"content,omitempty" mapstructure:"content"`
	ImageURL string         `json:"imageUrl,omitempty" mapstructure:"imageUrl"`
	VideoURL string         `json:"videoUrl,omitempty" mapstructure:"videoUrl"`
	ModelID  string         `json:"modelId,omitempty" mapstructure:"modelId"`
	Quality  string         `json:"quality,omitempty" mapstructure:"quality"`
	Seed     int64          `json:"seed,omitempty" mapstructure:"seed"`
	Strength float64        `json:"strength,omitempty" mapstructure:"strength"`
	Extra    map[string]any `json:"extra,omitempty" mapstructure:"-"`

	SourceNodeContent string `json:"sourceNodeContent,omitempty" mapstructure:"-"`
	SourceImageURL    string `json:"sourceImageUrl,omitempty" mapstructure:"-"`
	SourceVideoURL    string `json:"sourceVideoUrl,omitempty" mapstructure:"-"`

	Generation *GenerationRecord `json:"generation,omitempty" mapstructure:"-"`
}

// Clone returns a deep copy. Extra only ever holds plain values, so the copy is total.
func (d NodeData) Clone() NodeData {
	out := d
	if d.Extra != nil {
		out.Extra = cloneValue(d.Extra).(map[string]any)
	}
	if d.Generation != nil {
		rec := *d.Generation
		out.Generation = &rec
	}
	return out
}

// Authored returns a copy with shadow fields and generation state removed.
// Used for duplicates, clipboard entries, and anything created without edges.
func (d NodeData) Authored() NodeData {
	out := d.Clone()
	out.SourceNodeContent = ""
	out.SourceImageURL = ""
	out.SourceVideoURL = ""
	out.Generation = nil
	return out
}

// HasShadow reports whether any shadow field is populated.
func (d NodeData) HasShadow() bool {
	return d.SourceNodeContent != "" || d.SourceImageURL != "" || d.SourceVideoURL != ""
}

// Prompt returns the text a generator should use: its upstream text, falling
// back to its own authored content.
func (d NodeData) Prompt() string {
	if d.SourceNodeContent != "" {
		return d.SourceNodeContent
	}
	return d.Content
}

// DataPatch is an update to authored fields only. Nil fields are untouched;
// an Extra key mapped to nil is deleted.
type DataPatch struct {
	Label    *string        `json:"label,omitempty" mapstructure:"label"`
	Content  *string        `json:"content,omitempty" mapstructure:"content"`
	ImageURL *string        `json:"imageUrl,omitempty" mapstructure:"imageUrl"`
	VideoURL *string        `json:"videoUrl,omitempty" mapstructure:"videoUrl"`
	ModelID  *string        `json:"modelId,omitempty" mapstructure:"modelId"`
	Quality  *string        `json:"quality,omitempty" mapstructure:"quality"`
	Seed     *int64         `json:"seed,omitempty" mapstructure:"seed"`
	Strength *float64       `json:"strength,omitempty" mapstructure:"strength"`
	Extra    map[string]any `json:"extra,omitempty" mapstructure:"-"`
}

// Empty reports whether the patch changes nothing.
func (p DataPatch) Empty() bool {
	return p.Label == nil && p.Content == nil && p.ImageURL == nil && p.VideoURL == nil &&
		p.ModelID == nil && p.Quality == nil && p.Seed == nil && p.Strength == nil && len(p.Extra) == 0
}

// Apply writes the patch into d.
func (p DataPatch) Apply(d *NodeData) {
	setString(&d.Label, p.Label)
	setString(&d.Content, p.Content)
	setString(&d.ImageURL, p.ImageURL)
	setString(&d.VideoURL, p.VideoURL)
	setString(&d.ModelID, p.ModelID)
	setString(&d.Quality, p.Quality)
	if p.Seed != nil {
		d.Seed = *p.Seed
	}
	if p.Strength != nil {
		d.Strength = *p.Strength
	}
	for k, v := range p.Extra {
		if v == nil {
			delete(d.Extra, k)
			continue
		}
		plain, ok := Plain(v)
		if !ok {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = plain
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func cloneStyle(s map[string]string) map[string]string {
	if s == nil {
		return nil
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// CloneNodes deep-copies a node slice.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges copies an edge slice.
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
