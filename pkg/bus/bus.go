// Package bus provides the named-event bus that carries observability and
// lifecycle signals between the stream components.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docker/mdstream/pkg/ring"
)

// Wildcard subscribes to every event.
const Wildcard = "*"

const defaultHistorySize = 100

// Event is one published message.
type Event struct {
	Name      string
	Payload   any
	Timestamp time.Time
}

// Handler receives events. It runs on the publishing goroutine.
type Handler func(Event)

type subscription struct {
	id      string
	name    string
	handler Handler
	filter  func(Event) bool
	once    bool
}

// SubscribeOption customizes a subscription.
type SubscribeOption func(*subscription)

// WithFilter only delivers events for which fn returns true.
func WithFilter(fn func(Event) bool) SubscribeOption {
	return func(s *subscription) {
		s.filter = fn
	}
}

// Once removes the subscription after its first delivery.
func Once() SubscribeOption {
	return func(s *subscription) {
		s.once = true
	}
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize caps the number of events retained per name.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		b.historySize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// Bus dispatches events by name. Publishing and subscribing are safe from
// multiple goroutines because hosts feed the stream from a goroutine other
// than their UI loop.
type Bus struct {
	mu          sync.Mutex
	subs        []*subscription
	history     map[string]*ring.Buffer[Event]
	historySize int
	components  map[string]*Component
	logger      *slog.Logger
	now         func() time.Time
}

func New(opts ...Option) *Bus {
	b := &Bus{
		history:     make(map[string]*ring.Buffer[Event]),
		historySize: defaultHistorySize,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for name (or Wildcard) and returns a function
// that removes it.
func (b *Bus) Subscribe(name string, handler Handler, opts ...SubscribeOption) func() {
	s := &subscription{
		id:      uuid.NewString(),
		name:    name,
		handler: handler,
	}
	for _, opt := range opts {
		opt(s)
	}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return func() { b.remove(s.id) }
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish records the event and delivers it to matching subscribers in
// subscription order. A panicking handler is logged and skipped.
func (b *Bus) Publish(name string, payload any) {
	ev := Event{Name: name, Payload: payload, Timestamp: b.now()}

	b.mu.Lock()
	h, ok := b.history[name]
	if !ok {
		h = ring.New[Event](b.historySize)
		b.history[name] = h
	}
	h.Push(ev)

	var targets []*subscription
	kept := b.subs[:0:0]
	for _, s := range b.subs {
		matches := (s.name == name || s.name == Wildcard) && (s.filter == nil || s.filter(ev))
		if matches {
			targets = append(targets, s)
		}
		if !matches || !s.once {
			kept = append(kept, s)
		}
	}
	b.subs = kept
	b.mu.Unlock()

	for _, s := range targets {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", "event", ev.Name, "subscription", s.id, "panic", fmt.Sprint(r))
		}
	}()
	s.handler(ev)
}

// History returns the retained events for name, oldest first.
func (b *Bus) History(name string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.history[name]
	if !ok {
		return nil
	}
	return h.All()
}

// Subscribers counts the subscriptions registered for name, wildcard ones
// excluded.
func (b *Bus) Subscribers(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs {
		if s.name == name {
			n++
		}
	}
	return n
}

// Reset drops every subscription and the retained history.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	b.history = make(map[string]*ring.Buffer[Event])
}
