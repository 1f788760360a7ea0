// Package supervisor keeps the required set of named workers alive. It polls
// liveness every tick, respawns whatever is missing through a bounded worker
// pool, and drains the pool on shutdown so nothing outlives the daemon.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/state"
	"github.com/smazurov/shepherd/internal/worker"
)

// Default scheduling delays. The settle period gives a freshly spawned
// worker time to record its token before the next probe.
const (
	DefaultTickDelay   = 100 * time.Millisecond
	DefaultSettleDelay = 5 * time.Second
	DefaultGracePeriod = 10 * time.Second
)

// Spec describes one named worker variant: whether it is currently required
// and how to construct it. The supervisor holds a closed table of these
// rather than dispatching on dynamic types.
type Spec struct {
	// Name uniquely identifies the worker slot.
	Name string

	// Required reports whether the worker should be alive right now.
	// A nil predicate means always required.
	Required func(*state.Store) bool

	// New constructs the worker with its injected handles.
	New func(worker.Deps) worker.Worker
}

// Options configures a Supervisor.
type Options struct {
	// TickDelay is the pause between liveness passes (default 100ms).
	TickDelay time.Duration

	// SettleDelay replaces TickDelay for one tick after any spawn
	// (default 5s).
	SettleDelay time.Duration

	// GracePeriod bounds the shutdown drain (default 10s).
	GracePeriod time.Duration

	// Monitor overrides the liveness probe. Defaults to the pool itself.
	Monitor Monitor

	// OnTick, when set, is invoked once per pass, after spawning. Used to
	// feed the systemd watchdog.
	OnTick func()
}

// Supervisor is the top-level control loop.
type Supervisor struct {
	specs   []Spec
	store   *state.Store
	pool    *Pool
	monitor Monitor
	bus     *events.Bus
	logger  *slog.Logger
	opts    Options

	mu sync.Mutex
}

// New creates a supervisor over a fixed spec table. Specs can still flip
// their required-ness at runtime through their predicates; the table itself
// never changes.
func New(specs []Spec, store *state.Store, pool *Pool, bus *events.Bus, logger *slog.Logger, opts Options) *Supervisor {
	if opts.TickDelay <= 0 {
		opts.TickDelay = DefaultTickDelay
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	monitor := opts.Monitor
	if monitor == nil {
		monitor = pool
	}

	return &Supervisor{
		specs:   specs,
		store:   store,
		pool:    pool,
		monitor: monitor,
		bus:     bus,
		logger:  logger,
		opts:    opts,
	}
}

// Run ticks until the context is cancelled, then drains the pool. Returns
// nil when every worker stopped within the grace period.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("Supervisor started",
		"workers", len(s.specs),
		"tick", s.opts.TickDelay,
		"settle", s.opts.SettleDelay)

	for {
		spawned := s.Tick()

		delay := s.nextDelay(len(spawned))
		if len(spawned) > 0 {
			s.logger.Info("Spawned workers", "workers", spawned, "settle", delay)
			if s.bus != nil {
				s.bus.Publish(events.SupervisorTickEvent{
					Spawned:   spawned,
					Alive:     s.pool.Running(),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
			}
		}

		if s.opts.OnTick != nil {
			s.opts.OnTick()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.shutdown()
		case <-timer.C:
		}
	}
}

// nextDelay picks the pause after a pass: the settle delay when anything
// spawned this tick, the tick delay otherwise.
func (s *Supervisor) nextDelay(spawnCount int) time.Duration {
	if spawnCount > 0 {
		return s.opts.SettleDelay
	}
	return s.opts.TickDelay
}

// Tick performs one liveness pass: every required worker whose recorded
// token is absent or dead gets exactly one spawn request. All spawns are
// submitted before the caller applies the (single) tick delay.
func (s *Supervisor) Tick() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var spawned []string
	for _, spec := range s.specs {
		if spec.Required != nil && !spec.Required(s.store) {
			continue
		}
		if s.isRunning(spec.Name) {
			continue
		}

		if err := s.pool.Spawn(spec); err != nil {
			// Already-pending spawns and a closing pool are both normal
			// here; the next tick sorts it out.
			s.logger.Debug("Spawn skipped", "worker", spec.Name, "reason", err)
			continue
		}
		spawned = append(spawned, spec.Name)
	}
	return spawned
}

// isRunning probes the recorded token for a worker name. A missing or dead
// token clears the record as a side effect, healing the shared table even
// when nothing gets spawned this tick.
func (s *Supervisor) isRunning(name string) bool {
	token := s.store.Runner(name)
	if token == nil {
		return false
	}
	if !s.monitor.IsAlive(*token) {
		s.store.SetRunner(name, nil)
		return false
	}
	return true
}

// shutdown drains the pool. Workers that ignore cancellation are abandoned
// after the grace period and reported.
func (s *Supervisor) shutdown() error {
	s.logger.Warn("Shutting down, stopping workers")

	remaining := s.pool.Shutdown(s.opts.GracePeriod)
	if remaining > 0 {
		s.logger.Error("Workers did not stop within grace period", "remaining", remaining)
	}

	for _, spec := range s.specs {
		s.store.SetRunner(spec.Name, nil)
	}

	s.logger.Info("Supervisor stopped")
	return nil
}
