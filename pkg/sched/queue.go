// Package sched provides the next-tick deferral used to coalesce renders.
//
// A Queue models one scheduling tick: work deferred during a tick runs when
// the host calls Flush, and work deferred while flushing waits for the
// following Flush. Hosts decide what a tick is (a bubbletea tick message, a
// loop iteration, a test step).
package sched

// Deferrer queues a function for the next tick.
type Deferrer interface {
	Defer(fn func())
}

// Queue is a FIFO of deferred work. It is not safe for concurrent use; it
// belongs to the goroutine driving the stream.
type Queue struct {
	tasks []func()
	ticks int
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Defer(fn func()) {
	if fn == nil {
		return
	}
	q.tasks = append(q.tasks, fn)
}

// Flush runs the work queued before the call and returns how many tasks ran.
func (q *Queue) Flush() int {
	if len(q.tasks) == 0 {
		return 0
	}
	tasks := q.tasks
	q.tasks = nil
	q.ticks++
	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

// Pending returns the number of queued tasks.
func (q *Queue) Pending() int {
	return len(q.tasks)
}

// Ticks counts the flushes that ran at least one task.
func (q *Queue) Ticks() int {
	return q.ticks
}

// Discard drops queued work without running it.
func (q *Queue) Discard() {
	q.tasks = nil
}

var _ Deferrer = (*Queue)(nil)
