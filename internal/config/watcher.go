package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces editor save bursts into one reload.
const defaultDebounce = 1500 * time.Millisecond

// Watcher watches a configuration file and notifies typed handlers when it
// changes. The file is parsed fresh on every change so handlers never see
// stale data. The daemon uses it to pick up logging level and archive folder
// changes without a restart.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	onError  func(error)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.RWMutex
	handlers map[int]func(T)
	nextID   int
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce overrides the debounce window for file changes.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithErrorHandler sets a callback for config load failures. Without one,
// failures are only logged.
func WithErrorHandler[T any](handler func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = handler
	}
}

// NewConfigWatcher creates a typed configuration file watcher. The loader
// runs on every change and its result fans out to all registered handlers.
func NewConfigWatcher[T any](
	path string,
	loader func(path string) (T, error),
	logger *slog.Logger,
	opts ...WatcherOption[T],
) *Watcher[T] {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher[T]{
		path:     path,
		debounce: defaultDebounce,
		loader:   loader,
		handlers: make(map[int]func(T)),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers a handler called after each successful reload.
// The returned function unregisters it.
func (w *Watcher[T]) OnReload(handler func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Start begins watching the configuration file for changes.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if addErr := fsw.Add(w.path); addErr != nil {
		fsw.Close()
		return addErr
	}
	w.watcher = fsw

	w.logger.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop stops watching and releases the fsnotify watch.
func (w *Watcher[T]) Stop() error {
	w.cancel()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher[T]) run() {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("Config watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Write is an in-place edit, Create covers editors that
			// replace the file on save.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("Config file change detected", "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			pending = timer.C

		case <-pending:
			pending = nil
			w.logger.Info("Config file changed, loading and notifying handlers")
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

// reload parses the file and fans the result out. All handlers receive the
// same snapshot.
func (w *Watcher[T]) reload() {
	cfg, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("Failed to load config", "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.RLock()
	handlers := make([]func(T), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(cfg)
	}
}
