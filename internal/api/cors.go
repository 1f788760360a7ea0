package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns permissive CORS config for internal tools.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		MaxAge:       86400,
	}
}

// headers renders the config into the response header values once, so the
// per-request path only copies strings.
func (c CORSConfig) headers() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  c.AllowOrigin,
		"Access-Control-Allow-Methods": strings.Join(c.AllowMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(c.AllowHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(c.MaxAge),
	}
}

// NewCORSMiddleware creates CORS middleware with the given configuration.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := config.headers()

	return func(ctx huma.Context, next func(huma.Context)) {
		for name, value := range headers {
			ctx.SetHeader(name, value)
		}

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}

		next(ctx)
	}
}

// AddCORSHandler adds a CORS preflight handler to the mux for OPTIONS
// requests. Huma middleware doesn't intercept OPTIONS before routing, so
// this has to live on the mux itself.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := config.headers()

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		for name, value := range headers {
			w.Header().Set(name, value)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
