package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smazurov/shepherd/internal/queue"
)

// Poll cadence and escalation tuning for the status monitor.
const (
	slowInterval     = 30 * time.Second
	fastInterval     = 5 * time.Second
	failureThreshold = 3
	probeTimeout     = 5 * time.Second
)

// EscalationPayload is the payload carried by reset_upstream messages.
type EscalationPayload struct {
	Reason   string `json:"reason"`
	Failures int    `json:"failures"`
}

// StatusMonitor periodically verifies that the upstream worker's local HTTP
// endpoint is responsive. On success it shares the fresh channel data over
// the queue so consumers never probe themselves; on repeated failure it asks
// for an upstream reset.
//
// The failure counter is deliberately not cleared by escalating: once past
// the threshold, every failing iteration re-escalates until the upstream
// recovers. Redundant reset requests beat a missed recovery.
type StatusMonitor struct {
	Base
	client        *http.Client
	url           string
	delay         time.Duration
	failures      int
	interruptible bool
}

// NewStatusMonitor creates the monitor for an upstream endpoint. A wildcard
// bind address is rewritten to loopback since the probe runs on the same
// host.
func NewStatusMonitor(deps Deps, ip string, port int) *StatusMonitor {
	if ip == "0.0.0.0" {
		ip = "127.0.0.1"
	}

	return &StatusMonitor{
		Base:   NewBase("status", deps),
		client: &http.Client{Timeout: probeTimeout},
		url:    fmt.Sprintf("http://%s:%d/channels/", ip, port),
		delay:  slowInterval,
	}
}

// SetInterruptible controls whether an in-flight probe is cancelled when
// the worker is stopped. Off by default: cancellation is normally observed
// only at iteration boundaries, and the client timeout bounds the probe
// regardless. Debug runs turn this on for fast shutdown.
func (m *StatusMonitor) SetInterruptible(v bool) { m.interruptible = v }

// Delay returns the current adaptive poll interval.
func (m *StatusMonitor) Delay() time.Duration { return m.delay }

// Loop performs one health probe if the upstream believes itself active.
// Probe failures are handled locally and never crash the worker.
func (m *StatusMonitor) Loop(ctx context.Context) error {
	if !m.State.UpstreamRunning() {
		return nil
	}

	m.Log.Debug("Checking upstream client", "url", m.url)

	probeCtx := context.Background()
	if m.interruptible {
		probeCtx = ctx
	}

	payload, err := m.probe(probeCtx)
	if err != nil {
		m.delay = fastInterval
		m.failures++
		m.Log.Warn("Upstream status check failed", "error", err, "failures", m.failures)

		if m.failures > failureThreshold {
			m.PushEvent(queue.KindResetUpstream, EscalationPayload{
				Reason:   "bad status check",
				Failures: m.failures,
			})
		}
		return nil
	}

	m.delay = slowInterval
	m.failures = 0
	m.PushEvent(queue.KindChannelsUpdated, payload)
	return nil
}

// probe performs a single bounded-timeout request and decodes the body.
// Any transport error, non-2xx status, or undecodable body counts as a
// failed probe.
func (m *StatusMonitor) probe(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode channel data: %w", err)
	}
	return payload, nil
}
