// Package models defines request and response shapes for the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// WorkerInfo describes one managed worker as seen by the supervisor pool.
type WorkerInfo struct {
	Name       string `json:"name" example:"status" doc:"Worker name"`
	State      string `json:"state" example:"running" doc:"Pool state"`
	Token      int    `json:"token,omitempty" example:"3" doc:"Spawn token of the live instance, 0 when not running"`
	StartedAt  string `json:"started_at,omitempty" doc:"Start time of the live instance"`
	SpawnCount int    `json:"spawn_count" example:"2" doc:"Total spawns including respawns"`
	LastError  string `json:"last_error,omitempty" doc:"Error from the most recent crash"`
}

// WorkersData is the response data for worker enumeration.
type WorkersData struct {
	Workers []WorkerInfo `json:"workers" doc:"Managed workers"`
	Alive   int          `json:"alive" example:"2" doc:"Number of currently live workers"`
}

type WorkersResponse struct {
	Body WorkersData
}

// StateData is a point-in-time copy of the shared state store.
type StateData struct {
	Fields  map[string]any `json:"fields" doc:"Shared state fields"`
	Runners map[string]int `json:"runners" doc:"Recorded runner tokens by worker name"`
}

type StateResponse struct {
	Body StateData
}

// MessageData is a generic acknowledgement body.
type MessageData struct {
	Message string `json:"message" doc:"Human-readable result"`
}

type MessageResponse struct {
	Body MessageData
}

// QueueData reports event queue status.
type QueueData struct {
	Depth int `json:"depth" example:"0" doc:"Messages waiting in the queue"`
}

type QueueResponse struct {
	Body QueueData
}
