package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       *RingBuffer
	logCallback     LogCallback
)

// Config represents logging configuration. Modules maps a module name
// (the GetLogger argument) to a level override.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize applies the logging configuration. Safe to call again on config
// reload: existing module loggers get their levels updated and their handler
// chains rebuilt in place, so cached *slog.Logger values stay valid.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	// Keep the buffer across reloads so SSE subscribers retain history.
	if logBuffer == nil {
		logBuffer = NewRingBuffer(defaultBufferSize)
	}

	globalLevelVar.Set(resolveLevelLocked(""))

	// Loggers created before Initialize have no buffer handler yet, so the
	// chains are rebuilt rather than just re-leveled.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(resolveLevelLocked(module))
		handler := createHandler(config.Format, levelVar)
		moduleLoggers[module] = slog.New(handler).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// resolveLevelLocked returns the effective level for a module under the
// current config. An empty module name resolves the global level. Callers
// hold mutex.
func resolveLevelLocked(module string) slog.Level {
	level := slog.LevelInfo
	if parsed := parseLevel(globalConfig.Level); parsed != nil {
		level = *parsed
	}
	if module != "" {
		if override, ok := globalConfig.Modules[module]; ok {
			if parsed := parseLevel(override); parsed != nil {
				level = *parsed
			}
		}
	}
	return level
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers a callback invoked for each new log entry.
// The API server uses it to feed the SSE log stream.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// currentCallback returns the configured callback, if any.
func currentCallback() LogCallback {
	mutex.RLock()
	defer mutex.RUnlock()
	return logCallback
}

// GetLogger returns the logger for a module, creating it on first use.
// Loggers created before Initialize start at info level and are upgraded
// when Initialize runs.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Another goroutine may have won the race
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(resolveLevelLocked(module))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// createHandler builds the handler chain for one logger: stdout (text or
// json), the systemd journal when available, and the ring buffer feeding
// the SSE log stream. Level may be a *slog.LevelVar for runtime changes.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	// The buffer handler checks for a live buffer on every record, so it is
	// safe to attach before Initialize has created one.
	handlers = append(handlers, NewBufferHandler(level))

	switch len(handlers) {
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable reports whether stdout goes somewhere useful: a
// terminal, pipe, socket, or regular file. /dev/null shows up as a device
// and is excluded.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a level name to slog.Level, nil when unrecognized.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
