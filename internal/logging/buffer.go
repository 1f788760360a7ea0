package logging

import (
	"sync"
	"time"
)

// LogEntry is a single structured log line kept in memory for the logs API.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries in a fixed-size circular buffer.
// Safe for concurrent use.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	count   int
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write records an entry, evicting the oldest one when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = entry
	rb.next = (rb.next + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}
}

// ReadAll returns every buffered entry in chronological order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.readLocked(rb.count)
}

// Recent returns the newest n entries in chronological order.
// When fewer than n entries are buffered, all of them are returned.
func (rb *RingBuffer) Recent(n int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if n > rb.count {
		n = rb.count
	}
	return rb.readLocked(n)
}

// readLocked copies out the newest n entries. Caller holds at least a read lock.
func (rb *RingBuffer) readLocked(n int) []LogEntry {
	if n <= 0 {
		return nil
	}

	result := make([]LogEntry, n)
	// Oldest requested entry sits n slots behind the write cursor.
	start := rb.next - n
	if start < 0 {
		start += len(rb.entries)
	}
	for i := range n {
		result[i] = rb.entries[(start+i)%len(rb.entries)]
	}
	return result
}
