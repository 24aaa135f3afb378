// ABOUTME: Generator backed by the OpenAI Images API, guarded by a circuit breaker.
// ABOUTME: Supports image kinds only; video requests fail with ErrUnsupportedKind.
package openaigen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/flowcanvas/generation"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultModel is used when a node names no model.
const DefaultModel = "dall-e-3"

// ErrUnsupportedKind is returned for media kinds the Images API cannot produce.
var ErrUnsupportedKind = errors.New("openai generator: unsupported media kind")

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	// MaxRetries is passed through to the SDK; zero disables its retries.
	MaxRetries int
	// Breaker trips after this many consecutive failures.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Generator calls the Images API.
type Generator struct {
	client  openai.Client
	model   string
	size    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New builds a Generator from cfg.
func New(cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	g := &Generator{
		client: openai.NewClient(opts...),
		model:  model,
		size:   cfg.Size,
		logger: logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-images",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A cancelled request says nothing about the upstream's health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnsupportedKind)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return g
}

// State reports the breaker state.
func (g *Generator) State() gobreaker.State {
	return g.breaker.State()
}

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	if req.Kind != graph.KindImage {
		return generation.Result{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.call(ctx, req)
	})
	if err != nil {
		return generation.Result{}, err
	}
	return generation.Result{ArtifactURL: out.(string), Kind: graph.KindImage}, nil
}

func (g *Generator) call(ctx context.Context, req generation.Request) (string, error) {
	model := req.Inputs.ModelID
	if model == "" {
		model = g.model
	}
	params := openai.ImageGenerateParams{
		Prompt:         buildPrompt(req.Inputs),
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if g.size != "" {
		params.Size = openai.ImageGenerateParamsSize(g.size)
	}
	if req.Inputs.Quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(req.Inputs.Quality)
	}

	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai images: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", generation.ErrEmptyArtifact
	}
	img := resp.Data[0]
	switch {
	case img.URL != "":
		return img.URL, nil
	case img.B64JSON != "":
		return "data:image/png;base64," + img.B64JSON, nil
	}
	return "", generation.ErrEmptyArtifact
}

// buildPrompt folds an upstream reference image into the text prompt, since
// the generations endpoint takes no image input.
func buildPrompt(in generation.Inputs) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Prompt))
	if in.ImageURL != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Reference image: ")
		b.WriteString(in.ImageURL)
	}
	return b.String()
}
