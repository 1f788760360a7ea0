package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/shepherd/internal/events"
)

// EventSource is the subset of the event bus the recorder subscribes to.
type EventSource interface {
	Subscribe(handler any) func()
}

// WorkerCounter reports the number of live workers.
type WorkerCounter interface {
	Running() int
}

// QueueLener reports the current queue depth.
type QueueLener interface {
	Len() int
}

// Recorder keeps Prometheus metrics in sync with bus events and polls
// gauge values from the pool and queue.
type Recorder struct {
	bus      EventSource
	pool     WorkerCounter
	queue    QueueLener
	interval time.Duration
	unsubs   []func()
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRecorder creates a recorder. Pool and queue may be nil when gauge
// polling is not wanted.
func NewRecorder(bus EventSource, pool WorkerCounter, queue QueueLener) *Recorder {
	return &Recorder{
		bus:      bus,
		pool:     pool,
		queue:    queue,
		interval: 1 * time.Second,
	}
}

// Start subscribes to bus events and begins gauge polling.
func (r *Recorder) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.unsubs = append(r.unsubs,
		r.bus.Subscribe(func(e events.WorkerStateChangedEvent) {
			switch e.NewState {
			case "starting":
				RecordSpawn(e.Worker)
			case "error":
				RecordCrash(e.Worker)
			}
		}),
		r.bus.Subscribe(func(e events.EscalationEvent) {
			RecordEscalation(e.Source)
		}),
		r.bus.Subscribe(func(e events.QueueMessageEvent) {
			RecordQueueMessage(e.Kind)
		}),
	)

	if r.pool != nil && r.queue != nil {
		r.wg.Add(1)
		go r.poll()
	}
}

// Stop unsubscribes from the bus and waits for the polling goroutine.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
	r.wg.Wait()
}

func (r *Recorder) poll() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			SetWorkersAlive(r.pool.Running())
			SetQueueDepth(r.queue.Len())
		}
	}
}
