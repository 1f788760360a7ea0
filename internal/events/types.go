package events

// Event type constants for kelindar/event.
const (
	TypeWorkerStateChanged uint32 = iota + 1
	TypeEscalation
	TypeQueueMessage
	TypeSupervisorTick
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// WorkerStateChangedEvent is broadcast when a managed worker transitions
// between pool states.
type WorkerStateChangedEvent struct {
	Worker    string `json:"worker" example:"status" doc:"Worker name"`
	OldState  string `json:"old_state" example:"starting" doc:"Previous pool state"`
	NewState  string `json:"new_state" example:"running" doc:"New pool state"`
	Error     string `json:"error,omitempty" doc:"Error message for crashed workers"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for WorkerStateChangedEvent.
func (e WorkerStateChangedEvent) Type() uint32 { return TypeWorkerStateChanged }

// EscalationEvent is broadcast when a worker crosses its failure threshold
// and requests corrective action from another worker.
type EscalationEvent struct {
	Source    string `json:"source" example:"status" doc:"Worker that escalated"`
	Reason    string `json:"reason" example:"bad status check" doc:"Escalation reason"`
	Failures  int    `json:"failures" example:"4" doc:"Consecutive failure count"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Escalation timestamp"`
}

// Type returns the event type identifier for EscalationEvent.
func (e EscalationEvent) Type() uint32 { return TypeEscalation }

// QueueMessageEvent mirrors a consumed queue message onto the broadcast bus
// so observers (SSE, metrics) see queue traffic without stealing deliveries.
type QueueMessageEvent struct {
	Source    string `json:"source" example:"status" doc:"Producing worker name"`
	Kind      string `json:"kind" example:"channels_updated" doc:"Message kind"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Consumption timestamp"`
}

// Type returns the event type identifier for QueueMessageEvent.
func (e QueueMessageEvent) Type() uint32 { return TypeQueueMessage }

// SupervisorTickEvent is broadcast once per supervisor pass that spawned at
// least one worker.
type SupervisorTickEvent struct {
	Spawned   []string `json:"spawned,omitempty" doc:"Workers spawned this tick"`
	Alive     int      `json:"alive" doc:"Live worker count after the tick"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Tick timestamp"`
}

// Type returns the event type identifier for SupervisorTickEvent.
func (e SupervisorTickEvent) Type() uint32 { return TypeSupervisorTick }

// LogEntryEvent carries a structured log line to streaming observers.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
