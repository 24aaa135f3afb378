// ABOUTME: Boundary to the external generation collaborator plus a deterministic simulated implementation.
// ABOUTME: The machine only decides when Generate is called and with which accumulated inputs.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389-research/flowcanvas/graph"
)

// Inputs are the values a generator node has accumulated from its own data
// and its upstream shadow fields.
type Inputs struct {
	Prompt   string         `json:"prompt,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
	ModelID  string         `json:"modelId,omitempty"`
	Quality  string         `json:"quality,omitempty"`
	Seed     int64          `json:"seed,omitempty"`
	Strength float64        `json:"strength,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Request is one call to the generation collaborator.
type Request struct {
	RequestID  string         `json:"requestId"`
	ProducerID string         `json:"producerId"`
	SinkID     string         `json:"sinkId"`
	Category   graph.Category `json:"category"`
	// Kind is the media kind the producer's category emits.
	Kind   graph.MediaKind `json:"kind"`
	Inputs Inputs          `json:"inputs"`
}

// Result is a successful generation.
type Result struct {
	ArtifactURL string          `json:"artifactUrl"`
	Kind        graph.MediaKind `json:"kind"`
}

// Generator produces an artifact. Retries and timeouts are its own concern.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (Result, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// ErrEmptyArtifact is returned when a generator reports success without a URL.
var ErrEmptyArtifact = errors.New("generator returned an empty artifact url")

// Simulated returns placeholder artifacts derived from the request id.
type Simulated struct {
	// BaseURL prefixes every artifact; defaults to DefaultSimulatedBaseURL.
	BaseURL string
	// Latency is waited before answering, honouring cancellation.
	Latency time.Duration
}

// DefaultSimulatedBaseURL is the host used for simulated artifacts.
const DefaultSimulatedBaseURL = "https://placeholder.flowcanvas.local"

// Generate returns a deterministic URL for req.
func (s Simulated) Generate(ctx context.Context, req Request) (Result, error) {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	base := s.BaseURL
	if base == "" {
		base = DefaultSimulatedBaseURL
	}
	ext := "png"
	if req.Kind == graph.KindVideo {
		ext = "mp4"
	}
	return Result{
		ArtifactURL: fmt.Sprintf("%s/%s/%s.%s", base, req.Kind, req.RequestID, ext),
		Kind:        req.Kind,
	}, nil
}
