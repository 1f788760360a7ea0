package systemd

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierDisabledOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(testLogger())

	var calls int
	n.notifyFunc = func(_ bool, _ string) (bool, error) {
		calls++
		return true, nil
	}

	n.Ready()
	n.Keepalive()
	n.Stopping()

	if calls != 0 {
		t.Errorf("expected no sd_notify calls outside systemd, got %d", calls)
	}
}

func TestNotifierSendsLifecycleStates(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "/run/fake-notify")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(testLogger())

	var states []string
	n.notifyFunc = func(_ bool, state string) (bool, error) {
		states = append(states, state)
		return true, nil
	}

	n.Ready()
	n.Stopping()

	want := []string{"READY=1", "STOPPING=1"}
	if len(states) != len(want) {
		t.Fatalf("got %d states, want %d: %v", len(states), len(want), states)
	}
	for i, s := range want {
		if states[i] != s {
			t.Errorf("state[%d] = %q, want %q", i, states[i], s)
		}
	}
}

func TestKeepaliveRateLimited(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "/run/fake-notify")

	n := NewNotifier(testLogger())
	n.interval = time.Hour

	var calls int
	n.notifyFunc = func(_ bool, state string) (bool, error) {
		if state != "WATCHDOG=1" {
			t.Errorf("unexpected state %q", state)
		}
		calls++
		return true, nil
	}

	for range 10 {
		n.Keepalive()
	}

	if calls != 1 {
		t.Errorf("expected 1 watchdog message (rate limited), got %d", calls)
	}
}

func TestKeepaliveNoWatchdogConfigured(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "/run/fake-notify")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier(testLogger())

	var calls int
	n.notifyFunc = func(_ bool, _ string) (bool, error) {
		calls++
		return true, nil
	}

	n.Keepalive()

	if calls != 0 {
		t.Errorf("expected no watchdog message without WATCHDOG_USEC, got %d", calls)
	}
}
