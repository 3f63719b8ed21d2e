// Package ring provides a fixed-capacity FIFO buffer that evicts its oldest
// value on write once full.
//
// A Buffer is not safe for concurrent use; every history in this module has
// a single writer.
package ring

type Buffer[V any] struct {
	values []V
	head   int
	size   int
}

// New creates a buffer holding at most capacity values. A capacity below one
// is raised to one.
func New[V any](capacity int) *Buffer[V] {
	return &Buffer[V]{values: make([]V, max(capacity, 1))}
}

// Push appends value and reports whether an older value was evicted.
func (b *Buffer[V]) Push(value V) bool {
	capacity := len(b.values)
	if b.size < capacity {
		b.values[(b.head+b.size)%capacity] = value
		b.size++
		return false
	}
	b.values[b.head] = value
	b.head = (b.head + 1) % capacity
	return true
}

// Get returns the value at index, 0 being the oldest retained value.
func (b *Buffer[V]) Get(index int) (V, bool) {
	if index < 0 || index >= b.size {
		var zero V
		return zero, false
	}
	return b.values[(b.head+index)%len(b.values)], true
}

// Last returns the most recent value.
func (b *Buffer[V]) Last() (V, bool) {
	return b.Get(b.size - 1)
}

func (b *Buffer[V]) Length() int {
	return b.size
}

func (b *Buffer[V]) Capacity() int {
	return len(b.values)
}

// All returns a copy of the retained values, oldest first.
func (b *Buffer[V]) All() []V {
	out := make([]V, 0, b.size)
	for i := range b.size {
		out = append(out, b.values[(b.head+i)%len(b.values)])
	}
	return out
}

// Range calls f for each value, oldest first, until f returns false.
func (b *Buffer[V]) Range(f func(index int, value V) bool) {
	for i := range b.size {
		if !f(i, b.values[(b.head+i)%len(b.values)]) {
			return
		}
	}
}

// Clear drops every value while keeping the capacity.
func (b *Buffer[V]) Clear() {
	clear(b.values)
	b.head = 0
	b.size = 0
}
