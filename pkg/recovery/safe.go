package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Contented is implemented by event payloads that can be shown as text when
// their structured rendering fails.
type Contented interface {
	PlainContent() string
}

// TextFallback rebuilds displayable text from the tokens of a RenderError or
// the content of an AdapterError's event.
func TextFallback(err error) (string, bool) {
	var renderErr *RenderError
	if errors.As(err, &renderErr) && len(renderErr.Tokens) > 0 {
		return renderErr.Tokens.PlainText(), true
	}

	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		switch ev := adapterErr.Event.(type) {
		case Contented:
			if text := ev.PlainContent(); strings.TrimSpace(text) != "" {
				return text, true
			}
		case string:
			if strings.TrimSpace(ev) != "" {
				return ev, true
			}
		}
	}
	return "", false
}

// SafeOperation runs an operation under a Handler: retryable failures are
// retried with backoff, then Fallback is consulted, and when nothing applies
// the zero value is returned. Execute never returns an error and never
// panics.
type SafeOperation[T any] struct {
	Name     string
	Handler  *Handler
	Fallback func(ctx context.Context, err error) (T, bool)
	Logger   *slog.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

func (op *SafeOperation[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) T {
	v, _ := op.Try(ctx, fn)
	return v
}

// Try is Execute that also returns the last error seen, nil when fn
// eventually succeeded.
func (op *SafeOperation[T]) Try(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	handler := op.Handler
	if handler == nil {
		handler = NewHandler(Policy{})
	}
	logger := op.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := op.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	for attempt := 0; ; attempt++ {
		v, err := op.call(ctx, fn)
		if err == nil {
			return v, nil
		}

		d := handler.Decide(err, attempt)
		if d.Retry {
			if !sleep(ctx, d.Delay) {
				logger.Debug("Retry cancelled", "operation", op.Name, "error", ctx.Err())
				return op.fallback(ctx, err, logger)
			}
			continue
		}
		return op.fallback(ctx, err, logger)
	}
}

func (op *SafeOperation[T]) fallback(ctx context.Context, err error, logger *slog.Logger) (T, error) {
	if op.Fallback != nil {
		if v, ok := op.safeFallback(ctx, err); ok {
			return v, err
		}
	}
	logger.Warn("Operation failed without fallback", "operation", op.Name, "error", err)
	var zero T
	return zero, err
}

func (op *SafeOperation[T]) safeFallback(ctx context.Context, err error) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return op.Fallback(ctx, err)
}

func (op *SafeOperation[T]) call(ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn(ctx)
}
