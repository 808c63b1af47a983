package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; each subscriber sees events in publish order.
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
// Usage: bus.Publish(AudioMutedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SettingsChangedEvent:
		event.Publish(b.dispatcher, e)
	case WindowStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case AudioMutedEvent:
		event.Publish(b.dispatcher, e)
	case WindowOpenedEvent:
		event.Publish(b.dispatcher, e)
	case WindowClosedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e SettingsChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SettingsChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WindowStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AudioMutedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WindowOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WindowClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
