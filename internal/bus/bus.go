package bus

import (
	"github.com/kelindar/event"
)

// Bus is a typed wrapper around a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// PublishSignal delivers a signal to every signal subscriber.
func (b *Bus) PublishSignal(s Signal) {
	event.Publish(b.dispatcher, s)
}

// PublishState delivers a state broadcast to every state subscriber.
func (b *Bus) PublishState(s StateBroadcast) {
	event.Publish(b.dispatcher, s)
}

// SubscribeSignals registers handler for signals.
// The returned function removes the subscription.
func (b *Bus) SubscribeSignals(handler func(Signal)) func() {
	return event.Subscribe(b.dispatcher, handler)
}

// SubscribeStates registers handler for state broadcasts.
// The returned function removes the subscription.
func (b *Bus) SubscribeStates(handler func(StateBroadcast)) func() {
	return event.Subscribe(b.dispatcher, handler)
}
