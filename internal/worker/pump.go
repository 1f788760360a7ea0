package worker

import (
	"context"
	"time"

	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/queue"
)

// stateFieldChannels is where the pump caches the latest channel data so
// other workers can read it without probing the upstream themselves.
const stateFieldChannels = "channels"

// EventPump is the single consumer of the FIFO queue. It applies the core
// state transitions a message implies, then mirrors the message onto the
// broadcast bus for observers (SSE clients, metrics).
//
// Keeping one read cursor here resolves the which-consumer-gets-it question:
// workers that want queue traffic subscribe to the bus instead of popping.
type EventPump struct {
	Base
	bus *events.Bus
}

// NewEventPump creates the pump.
func NewEventPump(deps Deps, bus *events.Bus) *EventPump {
	return &EventPump{
		Base: NewBase("pump", deps),
		bus:  bus,
	}
}

// HandleEvent processes one consumed queue message.
func (p *EventPump) HandleEvent(_ context.Context, msg queue.Message) error {
	now := time.Now().UTC().Format(time.RFC3339)

	switch msg.Kind {
	case queue.KindResetUpstream:
		// Stop the status monitor from hammering a dead upstream until it
		// re-registers itself as running.
		p.State.SetUpstreamRunning(false)
		p.Log.Warn("Upstream reset requested", "source", msg.Source)

		esc := events.EscalationEvent{Source: msg.Source, Timestamp: now}
		if payload, ok := msg.Payload.(EscalationPayload); ok {
			esc.Reason = payload.Reason
			esc.Failures = payload.Failures
		}
		p.bus.Publish(esc)

	case queue.KindChannelsUpdated:
		p.State.Set(stateFieldChannels, msg.Payload)
		p.Log.Debug("Channel data updated", "source", msg.Source)

	case queue.KindUpstreamStarted:
		p.State.SetUpstreamRunning(true)

	case queue.KindUpstreamStopped:
		p.State.SetUpstreamRunning(false)
		p.State.SetActiveResourceID(nil)
	}

	p.bus.Publish(events.QueueMessageEvent{
		Source:    msg.Source,
		Kind:      msg.Kind.String(),
		Timestamp: now,
	})
	return nil
}
