package state

import (
	"maps"
	"sync"
)

// Field names used by the supervisor core. Workers may define their own
// fields on top of these; the store does not restrict the key space.
const (
	fieldRunners          = "runners"
	fieldUpstreamRunning  = "upstream_running"
	fieldActiveResourceID = "active_resource_id"
)

// Store is the coordination state shared by the supervisor and every worker.
// One exclusive lock guards the whole store. Per-field locks are deliberately
// absent: fields are small and touched at multi-second cadence, so contention
// is not a concern, and a single lock keeps cross-field updates atomic.
//
// Loop bodies must keep critical sections short and never perform I/O while
// the store methods are on the stack.
type Store struct {
	mu      sync.Mutex
	fields  map[string]any
	runners map[string]*int
}

// New creates an empty store with an empty runner table.
func New() *Store {
	return &Store{
		fields:  make(map[string]any),
		runners: make(map[string]*int),
	}
}

// Get returns the value of a field and whether it was set.
func (s *Store) Get(field string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.fields[field]
	return v, ok
}

// Set writes a field. The value is visible to the next Get from any goroutine.
func (s *Store) Set(field string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[field] = value
}

// SetRunner records the spawn token for a named worker, or clears it when
// token is nil. The runner table update is atomic under the store lock.
func (s *Store) SetRunner(name string, token *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == nil {
		delete(s.runners, name)
		return
	}
	t := *token
	s.runners[name] = &t
}

// Runner returns the recorded spawn token for a named worker, or nil if no
// live token is recorded.
func (s *Store) Runner(name string) *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.runners[name]
	if !ok || t == nil {
		return nil
	}
	v := *t
	return &v
}

// Runners returns a copy of the runner table.
func (s *Store) Runners() map[string]*int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*int, len(s.runners))
	for name, t := range s.runners {
		if t == nil {
			out[name] = nil
			continue
		}
		v := *t
		out[name] = &v
	}
	return out
}

// UpstreamRunning reports whether the upstream worker currently believes its
// resource is active. Defaults to false when the field was never set.
func (s *Store) UpstreamRunning() bool {
	v, ok := s.Get(fieldUpstreamRunning)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SetUpstreamRunning records whether the upstream resource is active.
func (s *Store) SetUpstreamRunning(running bool) {
	s.Set(fieldUpstreamRunning, running)
}

// ActiveResourceID returns the identifier of the currently active resource,
// or nil when none is active.
func (s *Store) ActiveResourceID() *string {
	v, ok := s.Get(fieldActiveResourceID)
	if !ok || v == nil {
		return nil
	}
	id, ok := v.(string)
	if !ok {
		return nil
	}
	return &id
}

// SetActiveResourceID records the active resource identifier. Passing nil
// clears it.
func (s *Store) SetActiveResourceID(id *string) {
	if id == nil {
		s.Set(fieldActiveResourceID, nil)
		return
	}
	s.Set(fieldActiveResourceID, *id)
}

// Snapshot returns a copy of all fields plus the runner table, for read-only
// consumers like the status API.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := maps.Clone(s.fields)
	runners := make(map[string]*int, len(s.runners))
	for name, t := range s.runners {
		if t == nil {
			runners[name] = nil
			continue
		}
		v := *t
		runners[name] = &v
	}
	out[fieldRunners] = runners
	return out
}
