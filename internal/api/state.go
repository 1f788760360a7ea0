package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/shepherd/internal/api/models"
)

// registerStateRoutes registers shared state and queue inspection endpoints.
func (s *Server) registerStateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/state",
		Summary:     "Shared state",
		Description: "Point-in-time snapshot of the shared state store",
		Tags:        []string{"state"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StateResponse, error) {
		snapshot := s.options.Store.Snapshot()

		runners := make(map[string]int)
		if table, ok := snapshot["runners"].(map[string]*int); ok {
			for name, token := range table {
				if token != nil {
					runners[name] = *token
				}
			}
		}
		delete(snapshot, "runners")

		return &models.StateResponse{
			Body: models.StateData{
				Fields:  snapshot,
				Runners: runners,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-queue",
		Method:      http.MethodGet,
		Path:        "/api/queue",
		Summary:     "Queue status",
		Description: "Current event queue depth",
		Tags:        []string{"state"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.QueueResponse, error) {
		return &models.QueueResponse{
			Body: models.QueueData{Depth: s.options.Queue.Len()},
		}, nil
	})
}
