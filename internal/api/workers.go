package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/shepherd/internal/api/models"
)

// registerWorkerRoutes registers worker inspection endpoints.
func (s *Server) registerWorkerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-workers",
		Method:      http.MethodGet,
		Path:        "/api/workers",
		Summary:     "List workers",
		Description: "List all managed workers with their pool state",
		Tags:        []string{"workers"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.WorkersResponse, error) {
		infos := s.options.Pool.Infos()
		workers := make([]models.WorkerInfo, 0, len(infos))
		for _, info := range infos {
			w := models.WorkerInfo{
				Name:       info.Name,
				State:      string(info.State),
				Token:      info.Token,
				SpawnCount: info.SpawnCount,
			}
			if !info.StartedAt.IsZero() {
				w.StartedAt = info.StartedAt.Format(time.RFC3339)
			}
			if info.LastError != nil {
				w.LastError = info.LastError.Error()
			}
			workers = append(workers, w)
		}

		return &models.WorkersResponse{
			Body: models.WorkersData{
				Workers: workers,
				Alive:   s.options.Pool.Running(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-worker",
		Method:      http.MethodGet,
		Path:        "/api/workers/{name}",
		Summary:     "Get worker",
		Description: "Get a single managed worker by name",
		Tags:        []string{"workers"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name" doc:"Worker name"`
	}) (*struct{ Body models.WorkerInfo }, error) {
		info := s.options.Pool.Info(input.Name)
		if info.SpawnCount == 0 {
			return nil, huma.Error404NotFound("unknown worker: " + input.Name)
		}

		w := models.WorkerInfo{
			Name:       info.Name,
			State:      string(info.State),
			Token:      info.Token,
			SpawnCount: info.SpawnCount,
		}
		if !info.StartedAt.IsZero() {
			w.StartedAt = info.StartedAt.Format(time.RFC3339)
		}
		if info.LastError != nil {
			w.LastError = info.LastError.Error()
		}

		return &struct{ Body models.WorkerInfo }{Body: w}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-worker",
		Method:      http.MethodPost,
		Path:        "/api/workers/{name}/restart",
		Summary:     "Restart worker",
		Description: "Stop a running worker. The supervisor respawns required workers on its next tick.",
		Tags:        []string{"workers"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name" doc:"Worker name"`
	}) (*models.MessageResponse, error) {
		if err := s.options.Pool.Stop(input.Name); err != nil {
			return nil, huma.Error409Conflict(err.Error())
		}
		return &models.MessageResponse{
			Body: models.MessageData{Message: "worker stopping: " + input.Name},
		}, nil
	})
}
