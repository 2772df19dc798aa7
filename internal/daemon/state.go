// Package daemon runs the background recorder and manages its lifetime:
// the state file describing the running instance, discovery and
// termination of earlier instances, and detached spawning.
package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"golang.org/x/xerrors"
)

// ErrNotRunning is returned by Load when no state file exists on disk.
var ErrNotRunning = xerrors.New("daemon is not running")

// State describes one daemon instance.
type State struct {
	ID         uuid.UUID `json:"id"`
	PID        int       `json:"pid"`
	Executable string    `json:"executable"`
	StartTime  time.Time `json:"start_time"`
	DataDir    string    `json:"data_dir"`
}

// StateStore persists the State of the running daemon.
type StateStore interface {
	Save(s *State) error
	Load() (*State, error) // returns ErrNotRunning if none exists
	// Delete removes the state file if it still belongs to id.
	Delete(id uuid.UUID) error
}

type diskStore struct {
	path string // full path to daemon.json
}

// NewStateStore returns a StateStore writing <dataDir>/daemon.json.
func NewStateStore(dataDir string) (StateStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dataDir, "daemon.json")}, nil
}

// Save marshals s to JSON and replaces the state file atomically.
func (d *diskStore) Save(s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return xerrors.Errorf("failed to persist daemon state: %w", err)
	}
	if err := atomic.WriteFile(d.path, bytes.NewReader(data)); err != nil {
		return xerrors.Errorf("failed to persist daemon state: %w", err)
	}
	return nil
}

// Load reads and unmarshals the state file.
// Returns ErrNotRunning if the file does not exist.
func (d *diskStore) Load() (*State, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotRunning
		}
		return nil, xerrors.Errorf("failed to read daemon state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, xerrors.Errorf("failed to parse daemon state: %w", err)
	}
	return &s, nil
}

func (d *diskStore) Delete(id uuid.UUID) error {
	current, err := d.Load()
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	// An unreadable file is removed too; it cannot describe a live daemon.
	if err == nil && current.ID != id {
		return nil
	}
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return xerrors.Errorf("failed to delete daemon state: %w", err)
	}
	return nil
}
