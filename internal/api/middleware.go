package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/shepherd/internal/logging"
)

// HTTPLoggingMiddleware logs HTTP requests with log levels based on status codes.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path
	query := ctx.URL().RawQuery

	logAttrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query != "" {
		logAttrs = append(logAttrs, slog.String("query", query))
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		logAttrs = append(logAttrs, slog.String("user_agent", ua))
	}

	next(ctx)

	status := ctx.Status()
	logAttrs = append(logAttrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	logger.LogAttrs(ctx.Context(), requestLevel(method, status), "HTTP request completed", logAttrs...)
}

// requestLevel picks the log level for a completed request. CORS preflight
// noise stays at debug.
func requestLevel(method string, status int) slog.Level {
	switch {
	case method == http.MethodOptions:
		return slog.LevelDebug
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
