package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Point names a moment in the stream lifecycle.
type Point string

const (
	PointInit         Point = "init"
	PointBeforeRender Point = "before-render"
	PointAfterRender  Point = "after-render"
	PointClear        Point = "clear"
	PointDestroy      Point = "destroy"
)

// Hook runs at a lifecycle point.
type Hook func(ctx context.Context) error

// HookError reports a hook that failed or panicked.
type HookError struct {
	Point Point
	Index int
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook #%d: %v", e.Point, e.Index, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Lifecycle holds ordered hooks per point.
type Lifecycle struct {
	mu     sync.Mutex
	hooks  map[Point][]Hook
	bus    *Bus
	logger *slog.Logger
}

// NewLifecycle creates a hook registry. bus may be nil; when set, every Run
// publishes "lifecycle:<point>".
func NewLifecycle(bus *Bus, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		hooks:  make(map[Point][]Hook),
		bus:    bus,
		logger: logger,
	}
}

// On appends hook to point.
func (l *Lifecycle) On(point Point, hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks[point] = append(l.hooks[point], hook)
}

// Run executes the hooks of point in registration order. A failing or
// panicking hook is reported and the remaining hooks still run.
func (l *Lifecycle) Run(ctx context.Context, point Point) []error {
	l.mu.Lock()
	hooks := append([]Hook(nil), l.hooks[point]...)
	l.mu.Unlock()

	var errs []error
	for i, hook := range hooks {
		if err := l.runOne(ctx, hook); err != nil {
			l.logger.Warn("Lifecycle hook failed", "point", point, "index", i, "error", err)
			errs = append(errs, &HookError{Point: point, Index: i, Err: err})
		}
	}

	if l.bus != nil {
		l.bus.Publish("lifecycle:"+string(point), len(errs))
	}
	return errs
}

func (l *Lifecycle) runOne(ctx context.Context, hook Hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook(ctx)
}
