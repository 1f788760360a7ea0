package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(EscalationEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case WorkerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case EscalationEvent:
		event.Publish(b.dispatcher, e)
	case QueueMessageEvent:
		event.Publish(b.dispatcher, e)
	case SupervisorTickEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e EscalationEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(WorkerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EscalationEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(QueueMessageEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SupervisorTickEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
