package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/queue"
	"github.com/smazurov/shepherd/internal/state"
	"github.com/smazurov/shepherd/internal/worker"
)

func poolTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockWorker loops until cancelled.
type blockWorker struct {
	worker.Base
}

func (w *blockWorker) Loop(_ context.Context) error { return nil }

func (w *blockWorker) Delay() time.Duration { return time.Millisecond }

// crashWorker panics on its first iteration.
type crashWorker struct {
	worker.Base
}

func (w *crashWorker) Loop(_ context.Context) error { panic("instant crash") }

func (w *crashWorker) Delay() time.Duration { return time.Millisecond }

func blockSpec(name string) Spec {
	return Spec{
		Name: name,
		New: func(deps worker.Deps) worker.Worker {
			return &blockWorker{Base: worker.NewBase(name, deps)}
		},
	}
}

func crashSpec(name string) Spec {
	return Spec{
		Name: name,
		New: func(deps worker.Deps) worker.Worker {
			return &crashWorker{Base: worker.NewBase(name, deps)}
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPoolSpawnRecordsRunner(t *testing.T) {
	store := state.New()
	pool := NewPool(4, store, queue.New(), nil, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(blockSpec("server")); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return store.Runner("server") != nil
	})

	token := store.Runner("server")
	if !pool.IsAlive(*token) {
		t.Error("expected recorded token to probe alive")
	}

	info := pool.Info("server")
	if info.State != StateRunning {
		t.Errorf("expected running state, got %s", info.State)
	}
	if info.SpawnCount != 1 {
		t.Errorf("expected spawn count 1, got %d", info.SpawnCount)
	}
}

func TestPoolSpawnDuplicateRejected(t *testing.T) {
	pool := NewPool(4, state.New(), queue.New(), nil, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(blockSpec("bot")); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := pool.Spawn(blockSpec("bot")); err == nil {
		t.Error("expected duplicate spawn to be rejected")
	}
}

func TestPoolCrashDropsToken(t *testing.T) {
	store := state.New()
	pool := NewPool(4, store, queue.New(), nil, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(crashSpec("hls")); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return pool.Info("hls").State == StateError
	})

	// The crashed worker's record is still in the shared table; only the
	// registry forgets it. The supervisor's probe clears the record.
	token := store.Runner("hls")
	if token == nil {
		t.Fatal("expected stale runner record to remain")
	}
	if pool.IsAlive(*token) {
		t.Error("expected dead token to probe not-alive")
	}
	if pool.Info("hls").LastError == nil {
		t.Error("expected crash error recorded")
	}
}

func TestPoolBoundQueuesSubmissions(t *testing.T) {
	store := state.New()
	pool := NewPool(1, store, queue.New(), nil, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(blockSpec("first")); err != nil {
		t.Fatalf("spawn first: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return pool.Info("first").State == StateRunning
	})

	if err := pool.Spawn(blockSpec("second")); err != nil {
		t.Fatalf("spawn second: %v", err)
	}

	// Second submission queues until a slot frees.
	time.Sleep(50 * time.Millisecond)
	if got := pool.Info("second").State; got != StateStarting {
		t.Errorf("expected second worker queued in starting, got %s", got)
	}
	if store.Runner("second") != nil {
		t.Error("queued worker must not record a token yet")
	}
}

func TestPoolCrashedWorkerCanRespawn(t *testing.T) {
	store := state.New()
	pool := NewPool(4, store, queue.New(), nil, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(crashSpec("archiver")); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return pool.Info("archiver").State == StateError
	})

	if err := pool.Spawn(blockSpec("archiver")); err != nil {
		t.Fatalf("respawn after crash: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return pool.Info("archiver").State == StateRunning
	})

	if got := pool.Info("archiver").SpawnCount; got != 2 {
		t.Errorf("expected spawn count 2, got %d", got)
	}
}

func TestPoolStopCancelsWorker(t *testing.T) {
	store := state.New()
	bus := events.New()
	var stopping atomic.Int32
	defer bus.Subscribe(func(e events.WorkerStateChangedEvent) {
		if e.NewState == string(StateStopping) {
			stopping.Add(1)
		}
	})()

	pool := NewPool(4, store, queue.New(), bus, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(blockSpec("status")); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return pool.Info("status").State == StateRunning
	})

	if err := pool.Stop("status"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, time.Second, func() bool { return stopping.Load() == 1 })
	waitFor(t, time.Second, func() bool {
		return pool.Info("status").State == StateIdle
	})

	// Clean stop, not a crash
	if pool.Info("status").LastError != nil {
		t.Errorf("unexpected error after stop: %v", pool.Info("status").LastError)
	}

	if err := pool.Stop("status"); err == nil {
		t.Error("expected error stopping an idle worker")
	}
	if err := pool.Stop("never-spawned"); err == nil {
		t.Error("expected error stopping an unknown worker")
	}
}

func TestPoolShutdownDrains(t *testing.T) {
	store := state.New()
	pool := NewPool(4, store, queue.New(), nil, poolTestLogger())

	for _, name := range []string{"server", "bot", "processor"} {
		if err := pool.Spawn(blockSpec(name)); err != nil {
			t.Fatalf("spawn %s: %v", name, err)
		}
	}
	waitFor(t, time.Second, func() bool { return pool.Running() == 3 })

	if remaining := pool.Shutdown(5 * time.Second); remaining != 0 {
		t.Errorf("expected full drain, %d still running", remaining)
	}
	if pool.Running() != 0 {
		t.Errorf("expected zero running after shutdown, got %d", pool.Running())
	}

	if err := pool.Spawn(blockSpec("late")); err != ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed after shutdown, got %v", err)
	}
}

func TestPoolPublishesStateChanges(t *testing.T) {
	bus := events.New()
	var starting, running atomic.Int32
	defer bus.Subscribe(func(e events.WorkerStateChangedEvent) {
		switch e.NewState {
		case string(StateStarting):
			starting.Add(1)
		case string(StateRunning):
			running.Add(1)
		}
	})()

	pool := NewPool(4, state.New(), queue.New(), bus, poolTestLogger())
	defer pool.Shutdown(time.Second)

	if err := pool.Spawn(blockSpec("server")); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return starting.Load() == 1 && running.Load() == 1
	})
}
