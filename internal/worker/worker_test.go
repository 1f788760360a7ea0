package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/shepherd/internal/queue"
	"github.com/smazurov/shepherd/internal/state"
)

func testDeps() Deps {
	return Deps{
		State: state.New(),
		Queue: queue.New(),
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// tickWorker counts loop iterations.
type tickWorker struct {
	Base
	iterations atomic.Int32
	loopErr    error
	setupErr   error
	tornDown   atomic.Bool
}

func (w *tickWorker) Setup(_ context.Context) error { return w.setupErr }

func (w *tickWorker) Teardown() { w.tornDown.Store(true) }

func (w *tickWorker) Loop(_ context.Context) error {
	w.iterations.Add(1)
	return w.loopErr
}

func (w *tickWorker) Delay() time.Duration { return time.Millisecond }

func TestRunLoopedUntilCancelled(t *testing.T) {
	w := &tickWorker{Base: NewBase("ticker", testDeps())}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, w) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	if w.iterations.Load() == 0 {
		t.Error("expected at least one iteration")
	}
	if !w.tornDown.Load() {
		t.Error("expected teardown to run")
	}
}

func TestRunLoopErrorIsCrash(t *testing.T) {
	w := &tickWorker{Base: NewBase("broken", testDeps()), loopErr: errors.New("boom")}

	err := Run(context.Background(), w)
	if err == nil {
		t.Fatal("expected loop error to crash the worker")
	}
	if !w.tornDown.Load() {
		t.Error("expected teardown even on crash")
	}
}

func TestRunSetupError(t *testing.T) {
	w := &tickWorker{Base: NewBase("nosetup", testDeps()), setupErr: errors.New("no resources")}

	if err := Run(context.Background(), w); err == nil {
		t.Fatal("expected setup error to propagate")
	}
	if w.iterations.Load() != 0 {
		t.Error("expected no iterations after setup failure")
	}
	if w.tornDown.Load() {
		t.Error("teardown must not run when setup failed")
	}
}

// panicWorker panics on its first iteration.
type panicWorker struct {
	Base
}

func (w *panicWorker) Loop(_ context.Context) error { panic("corrupted iteration") }

func (w *panicWorker) Delay() time.Duration { return time.Millisecond }

func TestRunRecoversPanic(t *testing.T) {
	w := &panicWorker{Base: NewBase("panicky", testDeps())}

	err := Run(context.Background(), w)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

// bareWorker implements neither shape.
type bareWorker struct {
	Base
}

func TestRunRejectsShapelessWorker(t *testing.T) {
	w := &bareWorker{Base: NewBase("shapeless", testDeps())}

	if err := Run(context.Background(), w); err == nil {
		t.Fatal("expected error for worker with no loop or handler")
	}
}

// echoWorker records dispatched messages.
type echoWorker struct {
	Base
	got chan queue.Message
}

func (w *echoWorker) HandleEvent(_ context.Context, msg queue.Message) error {
	w.got <- msg
	return nil
}

func TestRunReactiveDispatch(t *testing.T) {
	deps := testDeps()
	w := &echoWorker{Base: NewBase("echo", deps), got: make(chan queue.Message, 2)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Run(ctx, w) }()

	deps.Queue.Push(queue.Message{Source: "status", Kind: queue.KindChannelsUpdated})
	deps.Queue.Push(queue.Message{Source: "status", Kind: queue.KindResetUpstream})

	for _, want := range []queue.Kind{queue.KindChannelsUpdated, queue.KindResetUpstream} {
		select {
		case msg := <-w.got:
			if msg.Kind != want {
				t.Errorf("expected kind %s, got %s", want, msg.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("reactive worker did not receive message")
		}
	}
}

func TestPushEventStampsSource(t *testing.T) {
	deps := testDeps()
	base := NewBase("stamper", deps)

	base.PushEvent(queue.KindUpstreamStarted, "payload")

	msg, ok := deps.Queue.Pop(10 * time.Millisecond)
	if !ok {
		t.Fatal("expected queued message")
	}
	if msg.Source != "stamper" {
		t.Errorf("expected source stamper, got %s", msg.Source)
	}
	if msg.Payload != "payload" {
		t.Errorf("payload not carried through: %v", msg.Payload)
	}
}
