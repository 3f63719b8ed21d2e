package recovery

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/docker/mdstream/pkg/bus"
)

// Defaults for Policy.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 100 * time.Millisecond
	DefaultMaxDelay   = 2 * time.Second

	backoffFactor = 2.0
)

// Policy bounds the retries of retryable errors.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter is the relative random spread added to each delay (0.1 = ±10%).
	Jitter float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Backoff returns the delay before retry number attempt (0-indexed).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.BaseDelay)
	for range attempt {
		delay *= backoffFactor
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		delay += delay * p.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(delay)
}

// Decision tells the caller what to do with a failed attempt.
type Decision struct {
	Retry    bool
	Delay    time.Duration
	Fallback bool
	Severity Severity
}

// Report is the payload of the error events published on the bus.
type Report struct {
	Err      error
	Code     string
	Severity Severity
	Attempt  int
}

// Handler applies a Policy to errors and keeps per-code counters.
type Handler struct {
	policy Policy
	bus    *bus.Bus
	logger *slog.Logger

	mu    sync.Mutex
	stats map[string]int
}

type HandlerOption func(*Handler)

func WithBus(b *bus.Bus) HandlerOption {
	return func(h *Handler) {
		h.bus = b
	}
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(policy Policy, opts ...HandlerOption) *Handler {
	h := &Handler{
		policy: policy,
		logger: slog.Default(),
		stats:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Policy() Policy {
	return h.policy
}

// Decide records err and returns how to proceed after the given attempt
// (0-indexed). Retryable errors retry until MaxRetries is reached, then fall
// back when a fallback can rebuild output from the error.
func (h *Handler) Decide(err error, attempt int) Decision {
	if err == nil {
		return Decision{}
	}

	severity := Classify(err)
	code := CodeOf(err)

	h.mu.Lock()
	h.stats[code]++
	h.mu.Unlock()

	report := Report{Err: err, Code: code, Severity: severity, Attempt: attempt}
	h.publish("error:occurred", report)

	var d Decision
	d.Severity = severity
	switch severity {
	case SeverityRetryable:
		if attempt < h.policy.MaxRetries {
			d.Retry = true
			d.Delay = h.policy.Backoff(attempt)
			h.logger.Debug("Retrying after error", "code", code, "attempt", attempt, "backoff", d.Delay, "error", err)
			h.publish("error:retry", report)
			return d
		}
		d.Fallback = HasFallback(err)
	case SeverityWarning:
		h.logger.Warn("Advisory error", "code", code, "error", err)
		return d
	default:
		d.Fallback = HasFallback(err)
	}

	if d.Fallback {
		h.publish("error:fallback", report)
	} else {
		h.logger.Error("Unrecoverable error", "code", code, "severity", severity, "error", err)
		h.publish("error:unrecovered", report)
	}
	return d
}

// Stats returns a snapshot of the error counts per code.
func (h *Handler) Stats() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.stats)
}

func (h *Handler) publish(name string, report Report) {
	if h.bus != nil {
		h.bus.Publish(name, report)
	}
}

// HasFallback reports whether TextFallback can rebuild output from err.
func HasFallback(err error) bool {
	_, ok := TextFallback(err)
	return ok
}

// sleepWithContext sleeps for d, returning false if ctx is cancelled first.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var errPanic = errors.New("operation panicked")
