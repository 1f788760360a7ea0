package events

import "github.com/kelindar/event"

// SubscribeToChannel adapts the callback subscription model to a channel for
// consumers driving a select loop (the SSE endpoints). Sends never block: when
// a receiver falls behind, events are dropped rather than stalling the
// dispatcher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(ev T) {
		select {
		case ch <- ev:
		default:
		}
	})
}
