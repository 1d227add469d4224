package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single occurrence on the hub bus.
//
// Events are immutable once fired. Data holds event-specific payload
// fields (entity IDs, old/new states, service call details).
type Event struct {
	// ID uniquely identifies this event instance.
	ID string

	// Type is the event type, such as EventStateChanged.
	Type string

	// Data carries event-specific fields. May be nil.
	Data map[string]any

	// TimeFired is when the event was placed on the bus.
	TimeFired time.Time
}

// Handler receives events from the bus.
//
// Handlers run synchronously on the firing goroutine and must not
// block. Long-running work should be handed off to a goroutine by the
// handler itself.
type Handler func(ctx context.Context, event Event)

// DetachFunc removes a listener from the bus. Safe to call more than once.
type DetachFunc func()

// Logger is the minimal logging surface the bus needs.
type Logger interface {
	Error(msg string, args ...any)
}

// Bus is the hub's in-process event bus.
//
// Every state change, automation run, and service call flows through
// here, mirroring how integrations and the automation engine observe
// each other without direct coupling.
//
// All methods are safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string]map[int]Handler
	all       map[int]Handler
	nextID    int

	logger Logger
}

// New creates an event bus. Logger may be nil.
func New(logger Logger) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bus{
		listeners: make(map[string]map[int]Handler),
		all:       make(map[int]Handler),
		logger:    logger,
	}
}

// Fire places an event on the bus and delivers it to all matching
// listeners before returning.
//
// Delivery order between listeners is not defined. A panicking listener
// is recovered and logged; remaining listeners still run.
func (b *Bus) Fire(ctx context.Context, eventType string, data map[string]any) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		TimeFired: time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.listeners[eventType])+len(b.all))
	for _, h := range b.listeners[eventType] {
		handlers = append(handlers, h)
	}
	for _, h := range b.all {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, event)
	}

	return event
}

// deliver invokes one handler with panic recovery.
func (b *Bus) deliver(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panic recovered",
				"event_type", event.Type,
				"panic", r,
			)
		}
	}()
	h(ctx, event)
}

// Listen registers a handler for a single event type.
//
// The returned DetachFunc removes the listener; it is idempotent.
func (b *Bus) Listen(eventType string, handler Handler) DetachFunc {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.listeners[eventType] == nil {
		b.listeners[eventType] = make(map[int]Handler)
	}
	b.listeners[eventType][id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners[eventType], id)
			if len(b.listeners[eventType]) == 0 {
				delete(b.listeners, eventType)
			}
			b.mu.Unlock()
		})
	}
}

// ListenAll registers a handler that receives every event regardless of
// type. Used by the websocket hub and the history recorder.
func (b *Bus) ListenAll(handler Handler) DetachFunc {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.all[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.all, id)
			b.mu.Unlock()
		})
	}
}

// ListenerCount returns the number of listeners for an event type,
// excluding ListenAll listeners.
func (b *Bus) ListenerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[eventType])
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
