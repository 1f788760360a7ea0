// Package worker defines the lifecycle contract shared by every supervised
// worker: setup, repeated loop iterations (or event dispatch), teardown.
//
// Workers receive their shared state and queue handles at construction, never
// from package globals, so they can be tested in isolation with fresh fakes.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/shepherd/internal/queue"
	"github.com/smazurov/shepherd/internal/state"
)

// popTimeout bounds how long a reactive worker blocks on the queue before
// re-checking its cancellation context.
const popTimeout = 500 * time.Millisecond

// Deps carries the injected handles every worker needs.
type Deps struct {
	State *state.Store
	Queue *queue.Queue
	Log   *slog.Logger
}

// Worker is the base lifecycle contract. Concrete workers implement Looped
// or Reactive on top of it; Run refuses anything else.
type Worker interface {
	Name() string
	Setup(ctx context.Context) error
	Teardown()
	EventQueue() *queue.Queue
}

// Looped workers run short iterations separated by a worker-controlled
// delay. Cancellation is only observed between iterations, so each
// iteration must stay short.
type Looped interface {
	Worker
	Loop(ctx context.Context) error
	Delay() time.Duration
}

// Reactive workers block on the event queue and dispatch by message kind.
type Reactive interface {
	Worker
	HandleEvent(ctx context.Context, msg queue.Message) error
}

// Base holds the injected handles and implements the trivial parts of the
// Worker contract. Embed it in concrete workers.
type Base struct {
	name  string
	State *state.Store
	Queue *queue.Queue
	Log   *slog.Logger
}

// NewBase creates the embedded handle set for a named worker.
func NewBase(name string, deps Deps) Base {
	return Base{
		name:  name,
		State: deps.State,
		Queue: deps.Queue,
		Log:   deps.Log,
	}
}

// Name returns the worker name.
func (b *Base) Name() string { return b.name }

// Setup is a no-op by default.
func (b *Base) Setup(_ context.Context) error { return nil }

// Teardown is a no-op by default.
func (b *Base) Teardown() {}

// EventQueue returns the injected queue handle.
func (b *Base) EventQueue() *queue.Queue { return b.Queue }

// PushEvent pushes a message onto the queue with this worker's name stamped
// as the source.
func (b *Base) PushEvent(kind queue.Kind, payload any) {
	b.Queue.Push(queue.Message{Source: b.name, Kind: kind, Payload: payload})
}

// Run drives a worker through its full lifecycle: setup, iterations until
// the context is cancelled, teardown. A nil return means the worker stopped
// cleanly; any error (including a recovered panic) counts as a crash.
func Run(ctx context.Context, w Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", w.Name(), r)
		}
	}()

	if err := w.Setup(ctx); err != nil {
		return fmt.Errorf("setup %s: %w", w.Name(), err)
	}
	defer w.Teardown()

	switch v := w.(type) {
	case Looped:
		return runLooped(ctx, v)
	case Reactive:
		return runReactive(ctx, v)
	default:
		return fmt.Errorf("worker %s implements neither Looped nor Reactive", w.Name())
	}
}

// runLooped calls Loop until cancellation, sleeping the worker's current
// delay between iterations. The context is checked only at iteration
// boundaries; the sleep itself is interruptible.
func runLooped(ctx context.Context, w Looped) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := w.Loop(ctx); err != nil {
			return fmt.Errorf("loop %s: %w", w.Name(), err)
		}

		timer := time.NewTimer(w.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// runReactive drains the queue, dispatching each message to the worker.
func runReactive(ctx context.Context, w Reactive) error {
	q := w.EventQueue()
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, ok := q.Pop(popTimeout)
		if !ok {
			continue
		}

		if err := w.HandleEvent(ctx, msg); err != nil {
			return fmt.Errorf("handle %s %s: %w", w.Name(), msg.Kind, err)
		}
	}
}
