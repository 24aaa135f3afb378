// ABOUTME: Prometheus collectors for canvas mutations, generation lifecycle, and HTTP traffic.
// ABOUTME: Each Collector owns its registry so tests and sessions never collide on registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Canvas metrics
	Mutations *prometheus.CounterVec
	Rejected  *prometheus.CounterVec

	// Generation metrics
	Transitions       *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	ActiveGenerations prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with the given namespace on a fresh registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "canvas_mutations_total",
				Help:      "Total number of applied canvas mutations by event kind",
			},
			[]string{"kind"},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "canvas_rejected_operations_total",
				Help:      "Total number of canvas operations rejected as invalid",
			},
			[]string{"operation"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_transitions_total",
				Help:      "Total number of generation state transitions",
			},
			[]string{"from", "to"},
		),
		GenerationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Time from submit to completion or failure",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		ActiveGenerations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "generations_active",
				Help:      "Number of generation tasks currently running",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	registry.MustRegister(
		c.Mutations,
		c.Rejected,
		c.Transitions,
		c.GenerationSeconds,
		c.ActiveGenerations,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves this collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Mutation counts an applied canvas mutation.
func (c *Collector) Mutation(kind string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(kind).Inc()
}

// Reject counts an operation that failed closed.
func (c *Collector) Reject(op string) {
	if c == nil {
		return
	}
	c.Rejected.WithLabelValues(op).Inc()
}

// Transition counts a generation state change.
func (c *Collector) Transition(from, to string) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(from, to).Inc()
}

// GenerationStarted bumps the active gauge.
func (c *Collector) GenerationStarted() {
	if c == nil {
		return
	}
	c.ActiveGenerations.Inc()
}

// GenerationFinished drops the active gauge and records the run's duration.
func (c *Collector) GenerationFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.ActiveGenerations.Dec()
	c.GenerationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// HTTPRequest records one served request.
func (c *Collector) HTTPRequest(method, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, status).Inc()
	c.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
}
