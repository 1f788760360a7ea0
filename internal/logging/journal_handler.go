package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalIdentifier tags entries in journalctl output.
const journalIdentifier = "shepherd"

// JournalHandler is a slog.Handler writing to the systemd journal.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a journal handler at the given level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal with attributes flattened into
// journal fields.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := levelToPriority(r.Level)

	fields := map[string]string{
		"PRIORITY":          strconv.Itoa(int(priority)),
		"MESSAGE":           r.Message,
		"SYSLOG_IDENTIFIER": journalIdentifier,
	}

	for _, attr := range h.attrs {
		appendJournalField(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		appendJournalField(fields, attr, h.groups)
		return true
	})

	if err := journal.Send(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send to journal: %v\n", err)
		return err
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &JournalHandler{
		level:  h.level,
		attrs:  merged,
		groups: h.groups,
	}
}

// WithGroup returns a new handler with a group prefix.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	return &JournalHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

// levelToPriority maps slog levels onto journal priorities.
func levelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// appendJournalField flattens one slog attribute into the field map.
// Group names become underscore-joined key prefixes, and keys are uppercased
// per journal convention.
func appendJournalField(fields map[string]string, attr slog.Attr, groups []string) {
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	key = strings.ToUpper(key)

	switch attr.Value.Kind() {
	case slog.KindString:
		fields[key] = attr.Value.String()
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(attr.Value.Float64(), 'f', -1, 64)
	case slog.KindBool:
		fields[key] = strconv.FormatBool(attr.Value.Bool())
	case slog.KindDuration:
		fields[key] = attr.Value.Duration().String()
	case slog.KindTime:
		fields[key] = attr.Value.Time().Format("2006-01-02T15:04:05.000Z07:00")
	case slog.KindGroup:
		nested := append(slices.Clone(groups), key)
		for _, a := range attr.Value.Group() {
			appendJournalField(fields, a, nested)
		}
	default:
		fields[key] = attr.Value.String()
	}
}

// IsJournalAvailable reports whether the systemd journal accepts writes.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
