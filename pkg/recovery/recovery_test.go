package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/token"
)

type contentEvent struct{ content string }

func (e contentEvent) PlainContent() string { return e.content }

func noSleep(context.Context, time.Duration) bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"toolkit", &ToolkitError{Op: "create-region", Err: errors.New("gone")}, SeverityCritical},
		{"config", &ConfigError{Option: "max_width", Value: -1, Reason: "must be positive"}, SeverityCritical},
		{"performance", &PerformanceError{Operation: "parse", Observed: 20, Threshold: 16}, SeverityWarning},
		{"parse", &ParseError{Err: errors.New("bad")}, SeverityRetryable},
		{"wrapped render", fmt.Errorf("pass: %w", &RenderError{Err: errors.New("bad")}), SeverityRetryable},
		{"adapter", &AdapterError{Reason: "missing type"}, SeverityCritical},
		{"plain", errors.New("boom"), SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorCodesAndFields(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	perr := &ParseError{Chunk: "abc", Position: 7, Err: cause}
	assert.Equal(t, CodeParse, perr.Code())
	assert.Equal(t, 3, perr.Fields()["chunk_length"])
	assert.ErrorIs(t, perr, cause)

	assert.Equal(t, CodeToolkit, CodeOf(fmt.Errorf("x: %w", &ToolkitError{Op: "repaint", Err: cause})))
	assert.Equal(t, "UNKNOWN_ERROR", CodeOf(cause))
	assert.Contains(t, (&ConfigError{Option: "theme", Value: "pink", Reason: "unknown theme"}).Error(), "theme=pink")
}

func TestPolicyBackoff(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(-1))

	p.Jitter = 0.1
	d := p.Backoff(1)
	assert.InDelta(t, float64(200*time.Millisecond), float64(d), float64(20*time.Millisecond))
}

func TestHandlerDecide(t *testing.T) {
	t.Parallel()

	b := bus.New()
	h := NewHandler(Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, WithBus(b))

	renderErr := &RenderError{Tokens: token.Sequence{{Kind: token.KindText, Content: "hi"}}, Err: errors.New("x")}

	d := h.Decide(renderErr, 0)
	assert.True(t, d.Retry)
	assert.Equal(t, time.Millisecond, d.Delay)

	d = h.Decide(renderErr, 2)
	assert.False(t, d.Retry)
	assert.True(t, d.Fallback)

	d = h.Decide(&PerformanceError{Operation: "render"}, 0)
	assert.Equal(t, Decision{Severity: SeverityWarning}, d)

	d = h.Decide(&ToolkitError{Op: "repaint", Err: errors.New("x")}, 0)
	assert.False(t, d.Retry)
	assert.False(t, d.Fallback)

	assert.Equal(t, map[string]int{CodeRender: 2, CodePerformance: 1, CodeToolkit: 1}, h.Stats())
	assert.Len(t, b.History("error:occurred"), 4)
	assert.Len(t, b.History("error:retry"), 1)
	assert.Len(t, b.History("error:fallback"), 1)
	assert.Len(t, b.History("error:unrecovered"), 1)
}

func TestTextFallback(t *testing.T) {
	t.Parallel()

	text, ok := TextFallback(&RenderError{Tokens: token.Sequence{
		{Kind: token.KindText, Content: "a "},
		{Kind: token.KindStrong, Content: "b", Raw: "**b**"},
	}})
	require.True(t, ok)
	assert.Equal(t, "a **b**", text)

	text, ok = TextFallback(&AdapterError{Event: contentEvent{content: "hello"}})
	require.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = TextFallback(&AdapterError{Event: contentEvent{}})
	assert.False(t, ok)

	_, ok = TextFallback(&ParseError{})
	assert.False(t, ok)
}

func TestSafeOperationRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	op := &SafeOperation[string]{
		Name:    "render",
		Handler: NewHandler(Policy{MaxRetries: 3}),
		sleep:   noSleep,
	}

	calls := 0
	got := op.Execute(t.Context(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &RenderError{Err: errors.New("transient")}
		}
		return "ok", nil
	})

	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestSafeOperationFallsBack(t *testing.T) {
	t.Parallel()

	op := &SafeOperation[string]{
		Handler: NewHandler(Policy{MaxRetries: 1}),
		Fallback: func(_ context.Context, err error) (string, bool) {
			return TextFallback(err)
		},
		sleep: noSleep,
	}

	calls := 0
	got, err := op.Try(t.Context(), func(context.Context) (string, error) {
		calls++
		return "", &RenderError{Tokens: token.Sequence{{Kind: token.KindText, Content: "plain"}}, Err: errors.New("x")}
	})

	assert.Equal(t, "plain", got)
	assert.Equal(t, 2, calls)
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestSafeOperationRecoversPanics(t *testing.T) {
	t.Parallel()

	op := &SafeOperation[int]{
		Fallback: func(context.Context, error) (int, bool) { panic("fallback too") },
		sleep:    noSleep,
	}

	var got int
	assert.NotPanics(t, func() {
		got = op.Execute(t.Context(), func(context.Context) (int, error) { panic("boom") })
	})
	assert.Zero(t, got)
}

func TestSafeOperationStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	op := &SafeOperation[int]{Handler: NewHandler(Policy{MaxRetries: 5, BaseDelay: time.Hour})}
	calls := 0
	got := op.Execute(ctx, func(context.Context) (int, error) {
		calls++
		return 0, &ParseError{Err: errors.New("x")}
	})

	assert.Zero(t, got)
	assert.Equal(t, 1, calls)
}
