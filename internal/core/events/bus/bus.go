// Package bus is the in-process pub/sub channel for externally-consumed
// engine notifications. It never carries internal control flow: the frame
// pipeline calls its stages directly, and only UI/logging collaborators
// subscribe here.
package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one notification payload. Data is plain data; handlers return no
// values to the engine.
type Event struct {
	ID     string
	Type   string
	Source string
	Time   time.Time
	Data   any
}

// NewEvent builds an event stamped with a fresh ID and the current time.
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		Source: source,
		Time:   time.Now(),
		Data:   data,
	}
}

// Handler consumes one event. Errors are aggregated and returned to the
// publisher but never stop delivery to other handlers.
type Handler func(Event) error

// Subscription is a cancellable handle for one registered handler.
type Subscription struct {
	id        string
	eventType string
	cancel    func()
	active    bool
}

func (s *Subscription) ID() string        { return s.id }
func (s *Subscription) EventType() string { return s.eventType }
func (s *Subscription) IsActive() bool    { return s.active }

func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
}

// Metrics are cumulative bus counters.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
}

// Bus fans events out to handlers by event type. Delivery is synchronous in
// the publisher's goroutine; handlers should be quick or offload heavy work.
// Safe for concurrent use.
type Bus struct {
	mu sync.RWMutex
	// handlers: eventType -> subID -> handler
	handlers map[string]map[string]Handler
	metrics  Metrics
}

func New() *Bus {
	return &Bus{
		handlers: make(map[string]map[string]Handler),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	id := uuid.NewString()
	b.handlers[eventType][id] = handler
	sub := &Subscription{id: id, eventType: eventType, active: true}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m, ok := b.handlers[eventType]; ok {
			delete(m, id)
		}
	}
	return sub
}

// Publish delivers the event to all active subscribers of its type. Handler
// errors are joined.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	var handlers []Handler
	if m := b.handlers[event.Type]; m != nil {
		handlers = make([]Handler, 0, len(m))
		for _, h := range m {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	var all error
	for _, h := range handlers {
		if err := h(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(len(handlers))
	if all != nil {
		b.metrics.Errors++
	}
	b.mu.Unlock()
	return all
}

// PublishBatch publishes events in order, joining any handler errors.
func (b *Bus) PublishBatch(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.Publish(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

// SubscriberCount returns the number of active handlers for the event type.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// GetMetrics returns a snapshot of cumulative counters.
func (b *Bus) GetMetrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}
