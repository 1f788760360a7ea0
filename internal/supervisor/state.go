package supervisor

import "time"

// WorkerState represents the current pool state of a managed worker.
type WorkerState string

// Worker states.
const (
	StateIdle     WorkerState = "idle"     // Not running
	StateStarting WorkerState = "starting" // Spawn submitted, waiting for a slot
	StateRunning  WorkerState = "running"  // Active
	StateStopping WorkerState = "stopping" // Being stopped
	StateError    WorkerState = "error"    // Crashed
)

// Info contains information about a managed worker.
type Info struct {
	Name       string
	State      WorkerState
	Token      int
	StartedAt  time.Time
	SpawnCount int
	LastError  error
}
