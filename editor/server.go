// ABOUTME: HTTP server struct with chi router, session store, document repository, and metrics.
// ABOUTME: Configures all routes and middleware, and wires handler methods via functional options.

package editor

import (
	"net/http"
	"time"

	"github.com/2389-research/flowcanvas/diagram"
	"github.com/2389-research/flowcanvas/metrics"
	"github.com/2389-research/flowcanvas/persist"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

// ServerOption configures optional Server behavior.
type ServerOption func(*Server)

// WithRepository enables saving and loading documents.
func WithRepository(repo persist.Repository) ServerOption {
	return func(s *Server) { s.docs = repo }
}

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics exposes c on /metrics and records request metrics on it.
func WithMetrics(c *metrics.Collector) ServerOption {
	return func(s *Server) { s.metrics = c }
}

// WithAllowedOrigins sets the CORS allow list. Defaults to any origin.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithDiagramRenderer replaces the Graphviz renderer behind /diagram.
func WithDiagramRenderer(fn diagram.RenderFunc) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.diagrams = diagram.NewCache(fn, diagramCacheTTL)
		}
	}
}

const diagramCacheTTL = 5 * time.Minute

// Server holds the chi router, session store, and optional document repository.
type Server struct {
	router   chi.Router
	store    *Store
	docs     persist.Repository
	logger   *zap.Logger
	metrics  *metrics.Collector
	origins  []string
	markdown goldmark.Markdown
	diagrams *diagram.Cache
	now      func() time.Time
}

// NewServer creates a Server with all routes configured.
func NewServer(store *Store, opts ...ServerOption) *Server {
	s := &Server{
		store:    store,
		logger:   zap.NewNop(),
		origins:  []string{"*"},
		markdown: goldmark.New(),
		diagrams: diagram.NewCache(diagram.Engine{}.Render, diagramCacheTTL),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestLogger(s.logger, s.metrics))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/canvases", func(r chi.Router) {
		r.Post("/", s.handleCreateCanvas)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Delete("/", s.handleDeleteCanvas)
			r.Get("/validate", s.handleValidate)
			r.Get("/diagram", s.handleDiagram)
			r.Post("/save", s.handleSave)

			r.Post("/nodes", s.handleAddNode)
			r.Patch("/nodes/{nodeId}", s.handleUpdateNode)
			r.Delete("/nodes/{nodeId}", s.handleDeleteNode)
			r.Post("/nodes/{nodeId}/move", s.handleMoveNode)
			r.Post("/nodes/{nodeId}/duplicate", s.handleDuplicateNode)
			r.Post("/nodes/{nodeId}/generate", s.handleGenerate)
			r.Post("/nodes/{nodeId}/cancel", s.handleCancel)
			r.Get("/nodes/{nodeId}/preview", s.handlePreview)

			r.Post("/edges", s.handleConnect)
			r.Delete("/edges/{edgeId}", s.handleDisconnect)

			r.Put("/selection", s.handleSelect)
			r.Get("/clipboard", s.handleGetClipboard)
			r.Put("/clipboard", s.handleSetClipboard)
			r.Post("/copy", s.handleCopy)
			r.Post("/paste", s.handlePaste)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
		})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)
		r.Get("/{docId}", s.handleGetDocument)
		r.Delete("/{docId}", s.handleDeleteDocument)
	})

	s.router = r
	return s
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer wraps s in an http.Server listening on addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
