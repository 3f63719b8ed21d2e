package bus

import "sort"

// Component is a named publisher. Its events are re-broadcast on the bus as
// "<name>:<event>".
type Component struct {
	name string
	bus  *Bus
}

func (c *Component) Name() string {
	return c.name
}

// Emit publishes event under the component's namespace.
func (c *Component) Emit(event string, payload any) {
	c.bus.Publish(c.name+":"+event, payload)
}

// On subscribes to one of the component's namespaced events.
func (c *Component) On(event string, handler Handler, opts ...SubscribeOption) func() {
	return c.bus.Subscribe(c.name+":"+event, handler, opts...)
}

// Component returns the component registered under name, creating it on
// first use.
func (b *Bus) Component(name string) *Component {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.components == nil {
		b.components = make(map[string]*Component)
	}
	if c, ok := b.components[name]; ok {
		return c
	}
	c := &Component{name: name, bus: b}
	b.components[name] = c
	return c
}

// Components lists the registered component names in sorted order.
func (b *Bus) Components() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.components))
	for name := range b.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
