// Package systemd integrates the supervisor with the systemd service
// lifecycle. When running under systemd the notifier reports readiness,
// feeds the service watchdog from supervisor ticks, and announces shutdown.
// Outside systemd every call is a no-op.
package systemd

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages to the service manager.
type Notifier struct {
	mu         sync.Mutex
	enabled    bool
	interval   time.Duration
	lastKeep   time.Time
	logger     *slog.Logger
	notifyFunc func(unsetEnv bool, state string) (bool, error)
}

// NewNotifier creates a notifier. The watchdog interval is read from
// WATCHDOG_USEC; a zero interval means the watchdog is disabled.
func NewNotifier(logger *slog.Logger) *Notifier {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Failed to read watchdog configuration", "error", err)
		interval = 0
	}

	n := &Notifier{
		// NOTIFY_SOCKET is only set when systemd launched us with Type=notify.
		enabled:    os.Getenv("NOTIFY_SOCKET") != "",
		interval:   interval,
		logger:     logger,
		notifyFunc: daemon.SdNotify,
	}

	if n.enabled && interval > 0 {
		logger.Info("Systemd watchdog enabled", "interval", interval)
	}
	return n
}

// Ready reports that startup is complete.
func (n *Notifier) Ready() {
	n.notify(daemon.SdNotifyReady)
}

// Stopping reports that shutdown has begun.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)
}

// Keepalive feeds the watchdog. Call it from a periodic hook; messages
// are rate limited to half the watchdog interval so callers can invoke
// it as often as they like.
func (n *Notifier) Keepalive() {
	n.mu.Lock()
	if n.interval == 0 {
		n.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(n.lastKeep) < n.interval/2 {
		n.mu.Unlock()
		return
	}
	n.lastKeep = now
	n.mu.Unlock()

	n.notify(daemon.SdNotifyWatchdog)
}

func (n *Notifier) notify(state string) {
	if !n.enabled {
		return
	}
	if _, err := n.notifyFunc(false, state); err != nil {
		n.logger.Debug("sd_notify failed", "state", state, "error", err)
	}
}
