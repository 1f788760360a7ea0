package logging

import (
	"fmt"
	"testing"
	"time"
)

func bufferEntry(i int) LogEntry {
	return LogEntry{
		Timestamp: time.Unix(int64(i), 0),
		Level:     "info",
		Module:    "test",
		Message:   fmt.Sprintf("entry %d", i),
	}
}

func TestRingBufferReadAll(t *testing.T) {
	rb := NewRingBuffer(4)
	for i := range 3 {
		rb.Write(bufferEntry(i))
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Message != fmt.Sprintf("entry %d", i) {
			t.Errorf("entry %d out of order: %q", i, entry.Message)
		}
	}
}

func TestRingBufferEvictsOldest(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := range 5 {
		rb.Write(bufferEntry(i))
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", len(entries))
	}
	if entries[0].Message != "entry 2" || entries[2].Message != "entry 4" {
		t.Errorf("unexpected window after eviction: %q .. %q", entries[0].Message, entries[2].Message)
	}
}

func TestRingBufferRecent(t *testing.T) {
	rb := NewRingBuffer(4)
	for i := range 6 {
		rb.Write(bufferEntry(i))
	}

	// Newest two, oldest first, across the wrap point
	entries := rb.Recent(2)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "entry 4" || entries[1].Message != "entry 5" {
		t.Errorf("unexpected recent entries: %q, %q", entries[0].Message, entries[1].Message)
	}

	// Asking for more than buffered returns everything
	if got := rb.Recent(100); len(got) != 4 {
		t.Errorf("expected 4 entries for oversized request, got %d", len(got))
	}

	if got := rb.Recent(0); got != nil {
		t.Errorf("expected nil for zero request, got %d entries", len(got))
	}
}
