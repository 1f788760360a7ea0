package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/shepherd/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for worker transitions, escalations, queue traffic, and supervisor ticks",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"worker-state-changed": events.WorkerStateChangedEvent{},
		"escalation":           events.EscalationEvent{},
		"queue-message":        events.QueueMessageEvent{},
		"supervisor-tick":      events.SupervisorTickEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.WorkerStateChangedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.EscalationEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.QueueMessageEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.SupervisorTickEvent](s.options.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial connection confirmation
		if err := send.Data(events.SupervisorTickEvent{
			Alive:     s.options.Pool.Running(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
