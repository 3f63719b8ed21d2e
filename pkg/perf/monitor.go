// Package perf times the stages of a markdown stream, keeps a bounded history
// of samples and raises advisory warnings when a stage exceeds its threshold.
package perf

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/recovery"
	"github.com/docker/mdstream/pkg/ring"
)

// Operation names with a dedicated duration threshold.
const (
	OpParse  = "parse"
	OpRender = "render"
)

// WarningEvent is published on the bus for every threshold breach, with a
// *recovery.PerformanceError payload.
const WarningEvent = "performance:warning"

// Metric is one timed operation.
type Metric struct {
	Operation string
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	MemBefore uint64
	MemAfter  uint64
	Metadata  map[string]any
}

// MemDelta is the heap growth observed during the operation.
func (m Metric) MemDelta() int64 {
	return int64(m.MemAfter) - int64(m.MemBefore)
}

// Monitor records timings. The zero value is not usable; use New.
type Monitor struct {
	cfg    config.Performance
	bus    *bus.Bus
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	sample func() float64

	mu      sync.Mutex
	history *ring.Buffer[Metric]

	durations *prometheus.HistogramVec
	breaches  *prometheus.CounterVec
}

type Option func(*Monitor)

func WithBus(b *bus.Bus) Option {
	return func(m *Monitor) {
		m.bus = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithTracer sets the tracer used for per-operation spans. It defaults to
// the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Monitor) {
		m.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithSampler replaces the random source used for sampling. fn returns a
// value in [0, 1).
func WithSampler(fn func() float64) Option {
	return func(m *Monitor) {
		m.sample = fn
	}
}

func New(cfg config.Performance, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/docker/mdstream/pkg/perf"),
		now:     time.Now,
		sample:  rand.Float64,
		history: ring.New[Metric](cfg.MaxHistorySize),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mdstream",
			Name:      "operation_duration_seconds",
			Help:      "Duration of sampled stream operations.",
			Buckets:   []float64{.0005, .001, .002, .004, .008, .016, .032, .064, .128, .256},
		}, []string{"operation"}),
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mdstream",
			Name:      "threshold_breaches_total",
			Help:      "Number of operations that exceeded their configured threshold.",
		}, []string{"operation"}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Collectors returns the prometheus collectors fed by the monitor.
func (m *Monitor) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.durations, m.breaches}
}

// Register adds the collectors to reg.
func (m *Monitor) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Timer is an operation in progress. A Timer for an unsampled operation
// records nothing.
type Timer struct {
	m         *Monitor
	ctx       context.Context
	span      trace.Span
	operation string
	start     time.Time
	memBefore uint64
	sampled   bool
}

// Context returns the context carrying the operation span.
func (t *Timer) Context() context.Context {
	return t.ctx
}

// Begin starts timing op.
func (m *Monitor) Begin(ctx context.Context, op string) *Timer {
	if !m.cfg.Enabled || m.sample() >= m.cfg.SampleRate {
		return &Timer{m: m, ctx: ctx, operation: op}
	}

	ctx, span := m.tracer.Start(ctx, "mdstream."+op)
	t := &Timer{
		m:         m,
		ctx:       ctx,
		span:      span,
		operation: op,
		start:     m.now(),
		sampled:   true,
	}
	if m.cfg.TrackMemory {
		t.memBefore = heapAlloc()
	}
	return t
}

// End stops the timer, records the metric and checks thresholds. It returns
// false when the operation was not sampled.
func (t *Timer) End(meta map[string]any) (Metric, bool) {
	if !t.sampled {
		return Metric{}, false
	}
	t.sampled = false

	m := t.m
	end := m.now()
	metric := Metric{
		Operation: t.operation,
		Start:     t.start,
		End:       end,
		Duration:  end.Sub(t.start),
		MemBefore: t.memBefore,
		Metadata:  meta,
	}
	if m.cfg.TrackMemory {
		metric.MemAfter = heapAlloc()
	}

	m.mu.Lock()
	m.history.Push(metric)
	m.mu.Unlock()

	m.durations.WithLabelValues(t.operation).Observe(metric.Duration.Seconds())

	for k, v := range meta {
		if s, ok := v.(int); ok {
			t.span.SetAttributes(attribute.Int(k, s))
		}
	}
	t.span.SetAttributes(attribute.Int64("duration_us", metric.Duration.Microseconds()))
	t.span.End()

	m.checkMetric(metric)
	return metric, true
}

// Measure times fn under op.
func (m *Monitor) Measure(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	t := m.Begin(ctx, op)
	err := fn(t.Context())
	if err != nil && t.span != nil {
		t.span.RecordError(err)
	}
	t.End(nil)
	return err
}

func (m *Monitor) checkMetric(metric Metric) {
	var limit time.Duration
	switch metric.Operation {
	case OpParse:
		limit = m.cfg.Thresholds.Parse()
	case OpRender:
		limit = m.cfg.Thresholds.Render()
	}
	if limit > 0 && metric.Duration > limit {
		m.breach(metric.Operation, float64(metric.Duration.Microseconds())/1000, float64(limit.Microseconds())/1000)
	}

	if m.cfg.TrackMemory && m.cfg.Thresholds.MemoryBytes > 0 && metric.MemDelta() > m.cfg.Thresholds.MemoryBytes {
		m.breach(metric.Operation+".memory", float64(metric.MemDelta()), float64(m.cfg.Thresholds.MemoryBytes))
	}
}

// CheckChunk reports whether a chunk of size bytes is within the chunk-size
// threshold, raising a warning when it is not.
func (m *Monitor) CheckChunk(size int) bool {
	limit := m.cfg.Thresholds.ChunkSize
	if !m.cfg.Enabled || limit <= 0 || size <= limit {
		return true
	}
	m.breach("chunk_size", float64(size), float64(limit))
	return false
}

// CheckTokens reports whether n tokens are within the token-count threshold.
func (m *Monitor) CheckTokens(n int) bool {
	limit := m.cfg.Thresholds.TokenCount
	if !m.cfg.Enabled || limit <= 0 || n <= limit {
		return true
	}
	m.breach("token_count", float64(n), float64(limit))
	return false
}

func (m *Monitor) breach(op string, observed, threshold float64) {
	err := &recovery.PerformanceError{Operation: op, Observed: observed, Threshold: threshold}
	m.breaches.WithLabelValues(op).Inc()
	m.logger.Warn("Performance threshold exceeded", "operation", op, "observed", observed, "threshold", threshold)
	if m.bus != nil {
		m.bus.Publish(WarningEvent, err)
	}
}

// History returns the retained metrics, oldest first.
func (m *Monitor) History() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.All()
}

// Reset drops the retained metrics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Clear()
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}
