// Package api exposes supervisor observability over HTTP: worker and
// state inspection, Prometheus metrics, and SSE streams for events and
// logs.
package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/shepherd/internal/api/models"
	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/logging"
	"github.com/smazurov/shepherd/internal/queue"
	"github.com/smazurov/shepherd/internal/state"
	"github.com/smazurov/shepherd/internal/supervisor"
	"github.com/smazurov/shepherd/internal/version"
)

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Pool              *supervisor.Pool
	Store             *state.Store
	Queue             *queue.Queue
	Bus               *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Shepherd API", version.String())
	config.Info.Description = "Worker supervision and monitoring API"
	// Empty servers list makes OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	// CORS first, then request logging, then auth
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Metrics endpoint bypasses Huma so Prometheus scrapers get plain text
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	return server
}

// basicAuthMiddleware creates middleware for HTTP basic authentication.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		var credentials string

		if authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="Shepherd API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid authentication type")
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="Shepherd API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else {
			// SSE endpoints cannot set headers from EventSource, allow query fallback
			if queryAuth := ctx.Query("auth"); queryAuth != "" {
				decoded, err := base64.StdEncoding.DecodeString(queryAuth)
				if err != nil {
					ctx.SetHeader("WWW-Authenticate", `Basic realm="Shepherd API"`)
					huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
					return
				}
				credentials = string(decoded)
			}
		}

		if credentials == "" {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="Shepherd API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="Shepherd API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start starts the HTTP server on the specified address.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	return s.httpServer.ListenAndServe()
}

// Stop shuts down the server immediately, closing SSE connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				GoVersion: versionInfo.GoVersion,
				Platform:  versionInfo.Platform,
			},
		}, nil
	})

	s.registerWorkerRoutes()
	s.registerStateRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
