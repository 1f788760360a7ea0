// Package queue implements the in-memory FIFO message channel used by
// workers and the supervisor to signal each other asynchronously.
//
// The queue is single-consumer by delivery: each message is handed to exactly
// one Pop call. Broadcast observation of queue traffic goes through the
// events bus instead.
package queue

import (
	"sync"
	"time"
)

// Kind identifies the type of a queued message. Worker authors may define
// additional kinds; values below 64 are reserved for the core.
type Kind int

// Core message kinds.
const (
	KindResetUpstream Kind = iota + 1
	KindChannelsUpdated
	KindUpstreamStarted
	KindUpstreamStopped
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindResetUpstream:
		return "reset_upstream"
	case KindChannelsUpdated:
		return "channels_updated"
	case KindUpstreamStarted:
		return "upstream_started"
	case KindUpstreamStopped:
		return "upstream_stopped"
	default:
		return "unknown"
	}
}

// Message is a single queued event. Source is the name of the producing
// worker; Payload is opaque to the queue.
type Message struct {
	Source  string
	Kind    Kind
	Payload any
}

// Queue is an unbounded FIFO channel. Push never blocks the producer; Pop
// blocks up to a timeout. Ordering is global FIFO across all producers.
//
// The queue has no maximum size. Consumers must keep pace or accept memory
// growth; Len exists so the metrics layer can watch depth.
type Queue struct {
	mu    sync.Mutex
	items []Message
	wake  chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends a message. It never blocks, regardless of consumer state.
func (q *Queue) Push(msg Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest message. It blocks up to timeout when
// the queue is empty, returning false if nothing arrived in time. A zero or
// negative timeout makes Pop non-blocking.
func (q *Queue) Pop(timeout time.Duration) (Message, bool) {
	deadline := time.Now().Add(timeout)

	for {
		if msg, ok := q.take(); ok {
			return msg, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Message{}, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.wake:
			timer.Stop()
			// Another consumer may have raced us to the message; loop
			// and re-check under the lock.
		case <-timer.C:
			return Message{}, false
		}
	}
}

// take pops the head if present.
func (q *Queue) take() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Message{}, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
