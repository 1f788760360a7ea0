package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/queue"
	"github.com/smazurov/shepherd/internal/state"
	"github.com/smazurov/shepherd/internal/worker"
)

// ErrPoolClosed is returned by Spawn after shutdown has begun.
var ErrPoolClosed = errors.New("pool closed to new submissions")

// Monitor is the liveness probe capability. The pool's goroutine registry is
// the in-process implementation; tests substitute fakes.
type Monitor interface {
	// IsAlive reports whether the worker behind a spawn token is still
	// running. Unknown tokens are not alive.
	IsAlive(token int) bool
}

// managedWorker tracks one spawned worker within the pool.
type managedWorker struct {
	name       string
	token      int
	state      WorkerState
	startedAt  time.Time
	spawnCount int
	lastError  error
	cancel     context.CancelFunc
	done       chan struct{}
}

// Pool runs workers as goroutines with a hard upper bound on how many
// execute simultaneously. Submissions beyond the bound queue until a slot
// frees. Each spawn is assigned a monotonically increasing token that stands
// in for a process identifier; the token is recorded in the shared state
// runner table before the worker's first iteration and dropped from the
// registry when the worker goroutine exits for any reason.
//
// The pool never clears the runner table itself. The supervisor's liveness
// probe does that, so a stale record self-heals even on ticks that spawn
// nothing.
type Pool struct {
	mu        sync.Mutex
	workers   map[string]*managedWorker
	registry  map[int]*managedWorker
	nextToken int
	spawns    map[string]int
	slots     chan struct{}
	store     *state.Store
	queue     *queue.Queue
	bus       *events.Bus
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
}

// NewPool creates a pool bounded to size concurrent workers. Every spawned
// worker receives the same store and queue handles.
func NewPool(size int, store *state.Store, q *queue.Queue, bus *events.Bus, logger *slog.Logger) *Pool {
	if size <= 0 {
		panic("pool size must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:   make(map[string]*managedWorker),
		registry:  make(map[int]*managedWorker),
		nextToken: 1,
		spawns:    make(map[string]int),
		slots:     make(chan struct{}, size),
		store:     store,
		queue:     q,
		bus:       bus,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Spawn submits a worker for execution. Returns an error if the pool is
// closed or a worker with the same name is already starting or running.
func (p *Pool) Spawn(spec Spec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	if mw, exists := p.workers[spec.Name]; exists {
		if mw.state == StateRunning || mw.state == StateStarting {
			return fmt.Errorf("worker %s already running", spec.Name)
		}
	}

	token := p.nextToken
	p.nextToken++
	p.spawns[spec.Name]++

	mw := &managedWorker{
		name:       spec.Name,
		token:      token,
		state:      StateStarting,
		startedAt:  time.Now(),
		spawnCount: p.spawns[spec.Name],
		done:       make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(p.ctx)
	mw.cancel = cancel

	p.workers[spec.Name] = mw
	p.registry[token] = mw

	p.notifyStateChange(mw, StateIdle, StateStarting, nil)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(mw.done)
		p.runWorker(ctx, mw, spec)
	}()

	return nil
}

// Stop cancels a single named worker. It does not wait for the exit; the
// registry drops the token when the goroutine finishes. A stopped worker
// whose Required predicate still holds gets respawned by the supervisor on
// its next tick, which makes Stop an effective restart.
func (p *Pool) Stop(name string) error {
	p.mu.Lock()
	mw, exists := p.workers[name]
	if !exists || (mw.state != StateRunning && mw.state != StateStarting) {
		p.mu.Unlock()
		return fmt.Errorf("worker %s not running", name)
	}
	oldState := mw.state
	mw.state = StateStopping
	cancel := mw.cancel
	p.mu.Unlock()

	p.notifyStateChange(mw, oldState, StateStopping, nil)
	cancel()
	return nil
}

// runWorker waits for a slot, constructs the worker with injected handles,
// records its token, and drives the lifecycle to completion.
func (p *Pool) runWorker(ctx context.Context, mw *managedWorker, spec Spec) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.finishWorker(mw, nil)
		return
	}
	defer func() { <-p.slots }()

	w := spec.New(worker.Deps{
		State: p.store,
		Queue: p.queue,
		Log:   p.logger.With("worker", mw.name),
	})

	// Record identity before the first iteration so the supervisor's next
	// probe after the settle delay finds it.
	p.store.SetRunner(mw.name, &mw.token)

	p.mu.Lock()
	oldState := mw.state
	mw.state = StateRunning
	p.mu.Unlock()
	p.notifyStateChange(mw, oldState, StateRunning, nil)

	p.logger.Info("Worker started", "worker", mw.name, "token", mw.token)

	err := worker.Run(ctx, w)
	p.finishWorker(mw, err)
}

// finishWorker removes the token from the registry and records the terminal
// state: STOPPED when cancelled, CRASHED on any error.
func (p *Pool) finishWorker(mw *managedWorker, err error) {
	p.mu.Lock()
	delete(p.registry, mw.token)

	oldState := mw.state
	if err != nil {
		mw.state = StateError
		mw.lastError = err
	} else {
		mw.state = StateIdle
	}
	newState := mw.state
	lastErr := mw.lastError
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("Worker crashed", "worker", mw.name, "token", mw.token, "error", err)
	} else {
		p.logger.Info("Worker stopped", "worker", mw.name, "token", mw.token)
	}

	p.notifyStateChange(mw, oldState, newState, lastErr)
}

// IsAlive implements Monitor against the goroutine registry.
func (p *Pool) IsAlive(token int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.registry[token]
	return ok
}

// Running returns the number of workers currently starting or running.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.registry)
}

// Info returns the pool's view of a named worker.
func (p *Pool) Info(name string) Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	mw, exists := p.workers[name]
	if !exists {
		return Info{Name: name, State: StateIdle}
	}
	return Info{
		Name:       name,
		State:      mw.state,
		Token:      mw.token,
		StartedAt:  mw.startedAt,
		SpawnCount: mw.spawnCount,
		LastError:  mw.lastError,
	}
}

// Infos returns the pool's view of every worker it has ever spawned.
func (p *Pool) Infos() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Info, 0, len(p.workers))
	for _, mw := range p.workers {
		out = append(out, Info{
			Name:       mw.name,
			State:      mw.state,
			Token:      mw.token,
			StartedAt:  mw.startedAt,
			SpawnCount: mw.spawnCount,
			LastError:  mw.lastError,
		})
	}
	return out
}

// Shutdown closes the pool to new submissions, cancels every running
// worker, and waits for full drain. Returns the number of workers that were
// still running when the grace period expired.
func (p *Pool) Shutdown(grace time.Duration) int {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("Stopping all workers")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("All workers stopped")
		return 0
	case <-time.After(grace):
		remaining := p.Running()
		p.logger.Warn("Timeout waiting for workers to stop", "remaining", remaining)
		return remaining
	}
}

// notifyStateChange publishes a worker state transition on the bus.
func (p *Pool) notifyStateChange(mw *managedWorker, oldState, newState WorkerState, err error) {
	if p.bus == nil {
		return
	}
	ev := events.WorkerStateChangedEvent{
		Worker:    mw.name,
		OldState:  string(oldState),
		NewState:  string(newState),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.bus.Publish(ev)
}
