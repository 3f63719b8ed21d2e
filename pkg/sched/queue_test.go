package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsInOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	var order []int
	q.Defer(func() { order = append(order, 1) })
	q.Defer(func() { order = append(order, 2) })
	q.Defer(nil)

	assert.Equal(t, 2, q.Pending())
	assert.Equal(t, 2, q.Flush())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 0, q.Flush())
	assert.Equal(t, 1, q.Ticks())
}

func TestQueueDefersNestedWorkToNextTick(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ran := false
	q.Defer(func() {
		q.Defer(func() { ran = true })
	})

	q.Flush()
	assert.False(t, ran)
	assert.Equal(t, 1, q.Pending())

	q.Flush()
	assert.True(t, ran)
}

func TestQueueDiscard(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	q.Defer(func() { t.Fatal("discarded work ran") })
	q.Discard()
	assert.Equal(t, 0, q.Flush())
}
