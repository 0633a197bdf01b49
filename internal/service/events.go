package service

import "sync"

// Event represents a service lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the service. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher keeps the most recent events in a bounded ring, mainly for
// tests and debugging endpoints.
type MemoryPublisher struct {
	mu     sync.Mutex
	max    int
	events []Event
}

// NewMemoryPublisher creates a publisher retaining at most max events.
func NewMemoryPublisher(max int) *MemoryPublisher {
	if max <= 0 {
		max = 128
	}
	return &MemoryPublisher{max: max}
}

func (p *MemoryPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if len(p.events) > p.max {
		p.events = p.events[len(p.events)-p.max:]
	}
}

// Events returns a copy of the retained events.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
