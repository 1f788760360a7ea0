package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/logging"
)

// historyLimit caps how many buffered entries a new subscriber replays.
const historyLimit = 200

// registerLogRoutes registers the log streaming SSE endpoint.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Replay recent history from the ring buffer before going live
		buffer := logging.GetBuffer()
		if buffer != nil {
			for _, entry := range buffer.Recent(historyLimit) {
				event := events.LogEntryEvent{
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}

		// Larger buffer for logs
		eventCh := make(chan any, 100)

		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.options.Bus, eventCh)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
