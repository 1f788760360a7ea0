package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"
)

// archiveInterval is how often the archiver checks for fresh channel data.
const archiveInterval = 5 * time.Minute

// Archiver periodically writes the latest channel data from the shared
// state into timestamped JSON files under the configured output folder.
// The supervisor only runs it when an output folder is configured.
type Archiver struct {
	Base
	dir      string
	delay    time.Duration
	lastData any
}

// NewArchiver creates the archiver for an output folder.
func NewArchiver(deps Deps, dir string) *Archiver {
	return &Archiver{
		Base:  NewBase("archiver", deps),
		dir:   dir,
		delay: archiveInterval,
	}
}

// Setup ensures the output folder exists.
func (a *Archiver) Setup(_ context.Context) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive folder: %w", err)
	}
	return nil
}

// Delay returns the archive check interval.
func (a *Archiver) Delay() time.Duration { return a.delay }

// Loop writes a snapshot when the cached channel data changed since the
// last write. Quiet iterations are free.
func (a *Archiver) Loop(_ context.Context) error {
	data, ok := a.State.Get(stateFieldChannels)
	if !ok || data == nil {
		return nil
	}
	if reflect.DeepEqual(data, a.lastData) {
		return nil
	}

	name := fmt.Sprintf("channels-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(a.dir, name)

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode channel snapshot: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write channel snapshot: %w", err)
	}

	a.lastData = data
	a.Log.Info("Archived channel snapshot", "path", path)
	return nil
}
