// ABOUTME: Generation state machine: Idle -> Generating -> Complete per sink node, driven by cancellable tasks.
// ABOUTME: Each generating sink owns exactly one task, released once on cancel, completion, failure, or deletion.
package generation

import (
	"context"
	"sync"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Defaults for the countdown before the collaborator is called.
const (
	DefaultTicks        = 5
	DefaultTickInterval = time.Second
)

// DefaultSinkOffset places auto-created sinks to the right of their producer.
var DefaultSinkOffset = graph.Position{X: 360, Y: 0}

// TickerFunc starts a tick source and returns its channel and stop function.
type TickerFunc func(interval time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Option configures a Machine.
type Option func(*Machine)

// WithTicks sets the countdown length.
func WithTicks(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.ticks = n
		}
	}
}

// WithTickInterval sets the time between ticks.
func WithTickInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTicker replaces the tick source. Tests drive ticks by hand with it.
func WithTicker(fn TickerFunc) Option {
	return func(m *Machine) {
		if fn != nil {
			m.ticker = fn
		}
	}
}

// WithLogger sets the machine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records transitions and durations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Machine) { m.metrics = c }
}

// WithSinkOffset changes where auto-created sinks are placed.
func WithSinkOffset(p graph.Position) Option {
	return func(m *Machine) { m.sinkOffset = p }
}

// Machine runs generation tasks against one canvas store. It never holds its
// own lock while calling the store, because store listeners call back in.
type Machine struct {
	store      *canvas.Store
	gen        Generator
	ticks      int
	interval   time.Duration
	ticker     TickerFunc
	sinkOffset graph.Position
	logger     *zap.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer

	unsubscribe func()
	wg          sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

// task is the single outstanding generation of one sink.
type task struct {
	sinkID     string
	producerID string
	requestID  string
	started    time.Time
	cancel     context.CancelFunc
	once       sync.Once
}

// New creates a machine and subscribes it to store so deleting a node
// releases the tasks that depend on it.
func New(store *canvas.Store, gen Generator, opts ...Option) *Machine {
	m := &Machine{
		store:      store,
		gen:        gen,
		ticks:      DefaultTicks,
		interval:   DefaultTickInterval,
		ticker:     realTicker,
		sinkOffset: DefaultSinkOffset,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("github.com/2389-research/flowcanvas/generation"),
		tasks:      make(map[string]*task),
	}
	if m.gen == nil {
		m.gen = Simulated{}
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = store.Subscribe(m.onEvent)
	return m
}

// Ticks returns the configured countdown length.
func (m *Machine) Ticks() int { return m.ticks }

// Submit starts a generation. On a generator node it picks a downstream sink
// by the reuse policy, creating one if needed; on a sink it regenerates from
// the sink's upstream generator. Returns the generating sink's id.
func (m *Machine) Submit(ctx context.Context, nodeID string) (string, bool) {
	n, ok := m.store.Node(nodeID)
	if !ok {
		return "", false
	}

	var producer graph.Node
	sinkID := ""
	switch {
	case graph.IsSink(n.Category):
		producer, ok = upstreamGenerator(m.store, nodeID)
		if !ok {
			m.logger.Debug("submit rejected: sink has no upstream generator", zap.String("node", nodeID))
			return "", false
		}
		sinkID = nodeID
	case graph.IsGenerator(n.Category):
		producer = n
	default:
		return "", false
	}

	if !Ready(m.store, producer) {
		m.logger.Debug("submit rejected: inputs not satisfied",
			zap.String("node", producer.ID), zap.String("category", string(producer.Category)))
		m.metrics.Reject("submit")
		return "", false
	}

	if sinkID == "" {
		sinkID, ok = m.sinkFor(producer)
		if !ok {
			return "", false
		}
	}
	if !m.start(ctx, producer, sinkID) {
		return "", false
	}
	return sinkID, true
}

// sinkFor applies the reuse policy, falling back to a new sink wired to producer.
func (m *Machine) sinkFor(producer graph.Node) (string, bool) {
	if id, ok := reusableSink(m.store, producer.ID); ok {
		return id, true
	}
	id := m.store.AddNode(graph.CategoryRender, producer.Position.Add(m.sinkOffset), graph.NodeData{})
	if id == "" {
		return "", false
	}
	if m.store.Connect(producer.ID, "", id, "") == "" {
		m.logger.Warn("could not wire new sink", zap.String("producer", producer.ID), zap.String("sink", id))
		m.store.RemoveNode(id)
		return "", false
	}
	return id, true
}

// start moves sink to Generating and launches its task.
func (m *Machine) start(ctx context.Context, producer graph.Node, sinkID string) bool {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return false
	}

	requestID := graph.NewULID()
	var from graph.GenerationState
	ok := m.store.UpdateGeneration(sinkID, func(rec *graph.GenerationRecord) bool {
		if rec.State == graph.GenerationGenerating {
			return false
		}
		from = rec.State
		rec.State = graph.GenerationGenerating
		rec.TotalTicks = m.ticks
		rec.RemainingTicks = m.ticks
		rec.RequestID = requestID
		rec.Submitted = true
		rec.ArtifactURL = ""
		rec.Kind = graph.KindNone
		rec.LastError = ""
		return true
	})
	if !ok {
		return false
	}
	m.metrics.Transition(string(from), string(graph.GenerationGenerating))

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &task{
		sinkID:     sinkID,
		producerID: producer.ID,
		requestID:  requestID,
		started:    time.Now(),
		cancel:     cancel,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		m.settle(t)
		return false
	}
	m.tasks[sinkID] = t
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.GenerationStarted()
	m.logger.Info("generation started",
		zap.String("sink", sinkID),
		zap.String("producer", producer.ID),
		zap.String("request_id", requestID),
		zap.Int("ticks", m.ticks))

	tick, stop := m.ticker(m.interval)
	go m.run(taskCtx, t, tick, stop)
	return true
}

// run counts ticks down and then calls the collaborator.
func (m *Machine) run(ctx context.Context, t *task, tick <-chan time.Time, stop func()) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-tick:
		}

		remaining := -1
		ok := m.store.UpdateGeneration(t.sinkID, func(rec *graph.GenerationRecord) bool {
			if rec.RequestID != t.requestID || rec.State != graph.GenerationGenerating {
				return false
			}
			if rec.RemainingTicks > 0 {
				rec.RemainingTicks--
			}
			remaining = rec.RemainingTicks
			return true
		})
		if !ok {
			// The record moved on without us: cancelled, reloaded, or deleted.
			stop()
			m.release(t, "abandoned")
			return
		}
		if remaining == 0 {
			stop()
			m.finish(ctx, t)
			return
		}
	}
}

// finish calls the collaborator and records its result.
func (m *Machine) finish(ctx context.Context, t *task) {
	producer, ok := m.store.Node(t.producerID)
	if !ok {
		m.settle(t)
		m.release(t, "abandoned")
		return
	}
	req := Request{
		RequestID:  t.requestID,
		ProducerID: producer.ID,
		SinkID:     t.sinkID,
		Category:   producer.Category,
		Kind:       graph.OutputKind(producer.Category),
		Inputs:     collectInputs(producer),
	}

	res, err := m.generate(ctx, req)
	if ctx.Err() != nil {
		// Whoever cancelled owns the record transition.
		m.release(t, "cancelled")
		return
	}
	if err == nil && res.ArtifactURL == "" {
		err = ErrEmptyArtifact
	}
	if err != nil {
		m.logger.Warn("generation failed",
			zap.String("sink", t.sinkID), zap.String("request_id", t.requestID), zap.Error(err))
		if m.store.UpdateGeneration(t.sinkID, func(rec *graph.GenerationRecord) bool {
			if rec.RequestID != t.requestID {
				return false
			}
			rec.State = graph.GenerationIdle
			rec.RemainingTicks = rec.TotalTicks
			rec.RequestID = ""
			rec.LastError = err.Error()
			return true
		}) {
			m.metrics.Transition(string(graph.GenerationGenerating), string(graph.GenerationIdle))
		}
		m.release(t, "failed")
		return
	}

	kind := res.Kind
	if kind == graph.KindNone {
		kind = req.Kind
	}
	completed := m.store.UpdateGeneration(t.sinkID, func(rec *graph.GenerationRecord) bool {
		if rec.RequestID != t.requestID {
			return false
		}
		rec.State = graph.GenerationComplete
		rec.RemainingTicks = 0
		rec.ArtifactURL = res.ArtifactURL
		rec.Kind = kind
		rec.RequestID = ""
		rec.Completed = true
		return true
	})
	if completed {
		m.metrics.Transition(string(graph.GenerationGenerating), string(graph.GenerationComplete))
		m.store.WriteOutput(producer.ID, kind, res.ArtifactURL)
		m.logger.Info("generation complete",
			zap.String("sink", t.sinkID), zap.String("request_id", t.requestID), zap.String("artifact", res.ArtifactURL))
	}
	m.release(t, "complete")
}

// generate wraps the collaborator call in a span.
func (m *Machine) generate(ctx context.Context, req Request) (Result, error) {
	ctx, span := m.tracer.Start(ctx, "generation.Generate",
		trace.WithAttributes(
			attribute.String("generation.request_id", req.RequestID),
			attribute.String("generation.category", string(req.Category)),
			attribute.String("generation.kind", string(req.Kind)),
			attribute.String("generation.model", req.Inputs.ModelID),
		),
	)
	defer span.End()

	res, err := m.gen.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// release cancels a task's context and forgets it, exactly once.
func (m *Machine) release(t *task, outcome string) {
	t.once.Do(func() {
		t.cancel()
		m.mu.Lock()
		if m.tasks[t.sinkID] == t {
			delete(m.tasks, t.sinkID)
		}
		m.mu.Unlock()
		m.metrics.GenerationFinished(outcome, time.Since(t.started))
		m.logger.Debug("generation task released",
			zap.String("sink", t.sinkID), zap.String("request_id", t.requestID), zap.String("outcome", outcome))
	})
}

// settle returns a task's sink to Idle if the record still belongs to it.
func (m *Machine) settle(t *task) bool {
	return m.store.UpdateGeneration(t.sinkID, func(rec *graph.GenerationRecord) bool {
		if rec.RequestID != t.requestID || rec.State != graph.GenerationGenerating {
			return false
		}
		rec.State = graph.GenerationIdle
		rec.RemainingTicks = rec.TotalTicks
		rec.RequestID = ""
		rec.ArtifactURL = ""
		rec.Kind = graph.KindNone
		return true
	})
}

// Cancel stops a generating sink, or every sink a generator node is feeding.
// Only valid from Generating.
func (m *Machine) Cancel(nodeID string) bool {
	m.mu.Lock()
	var targets []*task
	if t, ok := m.tasks[nodeID]; ok {
		targets = append(targets, t)
	} else {
		for _, t := range m.tasks {
			if t.producerID == nodeID {
				targets = append(targets, t)
			}
		}
	}
	m.mu.Unlock()

	cancelled := false
	for _, t := range targets {
		if m.settle(t) {
			cancelled = true
			m.metrics.Transition(string(graph.GenerationGenerating), string(graph.GenerationIdle))
		}
		m.release(t, "cancelled")
	}
	return cancelled
}

// Generating reports whether nodeID is a sink with a live task.
func (m *Machine) Generating(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[nodeID]
	return ok
}

// onEvent releases tasks whose sink or producer no longer exists.
func (m *Machine) onEvent(ev canvas.Event) {
	if len(ev.Removed) == 0 {
		return
	}
	gone := make(map[string]bool, len(ev.Removed))
	for _, id := range ev.Removed {
		gone[id] = true
	}

	m.mu.Lock()
	var dead []*task
	for _, t := range m.tasks {
		if gone[t.sinkID] || gone[t.producerID] {
			dead = append(dead, t)
		}
	}
	m.mu.Unlock()

	for _, t := range dead {
		if !gone[t.sinkID] {
			m.settle(t)
		}
		m.release(t, "deleted")
	}
}

// Close cancels every task, waits for them to exit, and unsubscribes.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	tasks := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		m.settle(t)
		m.release(t, "closed")
	}
	m.unsubscribe()
	m.wg.Wait()
}
