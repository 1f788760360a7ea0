package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// LogCallback is called when a new log entry is written.
// Used to publish log events without creating import cycles.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that writes to the package ring buffer
// and calls the configured callback for each log entry. Buffer and callback
// are looked up at handle time, so handlers created before Initialize()
// start recording as soon as the buffer exists.
type BufferHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewBufferHandler creates a handler that writes to the package ring buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer := GetBuffer()
	if buffer == nil {
		return nil
	}

	attrs := make(map[string]any)
	module := "app"

	// The module attribute becomes the entry's Module field instead of a
	// regular attribute, so the SSE stream can filter on it.
	collect := func(a slog.Attr) {
		if a.Key == "module" {
			module = a.Value.String()
			return
		}
		flattenAttr(attrs, h.groups, a)
	}

	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	}

	buffer.Write(entry)

	if callback := currentCallback(); callback != nil {
		callback(entry)
	}

	return nil
}

// flattenAttr extracts a slog.Attr into a flat map with dot-notation keys for groups.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		// Recursively flatten group attributes
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, append(groups, a.Key), ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		// Handle error type specially
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &BufferHandler{
		level:  h.level,
		attrs:  merged,
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	return &BufferHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
