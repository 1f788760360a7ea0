// Package logging provides per-module structured logging on top of
// [log/slog].
//
// Each subsystem gets its own named logger via [GetLogger]; levels are
// adjustable per module at runtime through [slog.LevelVar], so a single
// noisy worker can be turned up to debug without drowning the rest of the
// daemon.
//
// Every record is fanned out to up to three sinks:
//
//   - stdout (text or json, per config), when stdout is usable
//   - the systemd journal, when running under systemd
//   - an in-memory ring buffer serving the /api/logs stream
//
// # Journal integration
//
// Journal availability is checked via
// [github.com/coreos/go-systemd/v22/journal.Enabled]. Useful queries:
//
//	journalctl -t shepherd              # All shepherd logs
//	journalctl -t shepherd -f           # Follow live
//	journalctl -t shepherd --since "5m" # Last 5 minutes
//	journalctl -t shepherd -p err       # Errors only
//
// Structured attributes become journal fields, so filtering by worker works:
//
//	journalctl -t shepherd MODULE=supervisor
//	journalctl -t shepherd WORKER=status
package logging
