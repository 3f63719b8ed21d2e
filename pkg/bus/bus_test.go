package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToNamedAndWildcard(t *testing.T) {
	t.Parallel()

	b := New()
	var named, all []string
	b.Subscribe("render:complete", func(ev Event) { named = append(named, ev.Name) })
	b.Subscribe(Wildcard, func(ev Event) { all = append(all, ev.Name) })

	b.Publish("render:complete", 3)
	b.Publish("parse:complete", 1)

	assert.Equal(t, []string{"render:complete"}, named)
	assert.Equal(t, []string{"render:complete", "parse:complete"}, all)
}

func TestSubscribeOptions(t *testing.T) {
	t.Parallel()

	b := New()
	onceCount := 0
	b.Subscribe("tick", func(Event) { onceCount++ }, Once())

	var even []int
	b.Subscribe("tick", func(ev Event) { even = append(even, ev.Payload.(int)) },
		WithFilter(func(ev Event) bool { return ev.Payload.(int)%2 == 0 }))

	for i := range 5 {
		b.Publish("tick", i)
	}

	assert.Equal(t, 1, onceCount)
	assert.Equal(t, []int{0, 2, 4}, even)
	assert.Equal(t, 1, b.Subscribers("tick"))
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	b := New()
	calls := 0
	unsubscribe := b.Subscribe("x", func(Event) { calls++ })
	b.Publish("x", nil)
	unsubscribe()
	b.Publish("x", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Subscribers("x"))
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()

	b := New(WithHistorySize(2))
	b.Publish("e", 1)
	b.Publish("e", 2)
	b.Publish("e", 3)

	history := b.History("e")
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Payload)
	assert.Equal(t, 3, history[1].Payload)
	assert.Nil(t, b.History("missing"))
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	b := New()
	delivered := false
	b.Subscribe("e", func(Event) { panic("boom") })
	b.Subscribe("e", func(Event) { delivered = true })

	assert.NotPanics(t, func() { b.Publish("e", nil) })
	assert.True(t, delivered)
}

func TestComponentNamespacesEvents(t *testing.T) {
	t.Parallel()

	b := New()
	parser := b.Component("parser")
	assert.Same(t, parser, b.Component("parser"))
	b.Component("engine")

	var got []string
	b.Subscribe("parser:complete", func(ev Event) { got = append(got, ev.Name) })
	parser.On("complete", func(ev Event) { got = append(got, "on:"+ev.Name) })
	parser.Emit("complete", nil)

	assert.Equal(t, []string{"parser:complete", "on:parser:complete"}, got)
	assert.Equal(t, []string{"engine", "parser"}, b.Components())
}

func TestLifecycleRunsEveryHook(t *testing.T) {
	t.Parallel()

	b := New()
	l := NewLifecycle(b, nil)

	var order []int
	l.On(PointBeforeRender, func(context.Context) error { order = append(order, 1); return nil })
	l.On(PointBeforeRender, func(context.Context) error { return errors.New("nope") })
	l.On(PointBeforeRender, func(context.Context) error { panic("boom") })
	l.On(PointBeforeRender, func(context.Context) error { order = append(order, 4); return nil })

	errs := l.Run(t.Context(), PointBeforeRender)
	assert.Equal(t, []int{1, 4}, order)
	require.Len(t, errs, 2)

	var hookErr *HookError
	require.ErrorAs(t, errs[1], &hookErr)
	assert.Equal(t, 2, hookErr.Index)
	assert.Contains(t, hookErr.Error(), "panic: boom")

	require.Len(t, b.History("lifecycle:before-render"), 1)
	assert.Empty(t, l.Run(t.Context(), PointDestroy))
}
