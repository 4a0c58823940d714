package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists counters as a JSON file in the user state dir,
// the CLI's stand-in for browser local storage.
type FileStore struct {
	Path string
}

// DefaultStatePath resolves the per-user counter file location.
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "speakcoach", "counters.json"), nil
}

func (f *FileStore) Load() (CounterState, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return CounterState{}, nil
	}
	if err != nil {
		return CounterState{}, err
	}
	var c CounterState
	if err := json.Unmarshal(data, &c); err != nil {
		// A corrupt counter file should not brick the app.
		return CounterState{}, nil
	}
	return c, nil
}

// Save writes atomically via a temp file rename so a crash mid-write
// cannot leave a half-written record.
func (f *FileStore) Save(c CounterState) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// MemStore is an in-memory Store for tests and ephemeral sessions.
type MemStore struct {
	State   CounterState
	SaveErr error
	Saves   int
}

func (m *MemStore) Load() (CounterState, error) { return m.State, nil }

func (m *MemStore) Save(c CounterState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.State = c
	m.Saves++
	return nil
}
