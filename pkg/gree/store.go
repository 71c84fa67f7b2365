package gree

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// stateVersion is the current version of the state file format.
const stateVersion = 1

// savedState is the on-disk snapshot of the registry.
type savedState struct {
	Version int           `json:"version"`
	SavedAt time.Time     `json:"saved_at"`
	Devices []savedDevice `json:"devices,omitempty"`
}

// savedDevice carries what must survive a restart: the identity and the
// session key. The address and metadata are refreshed by the next scan.
type savedDevice struct {
	Mac     string    `json:"mac"`
	IP      string    `json:"ip,omitempty"`
	Name    string    `json:"name,omitempty"`
	Key     string    `json:"key,omitempty"`
	BoundAt time.Time `json:"bound_at,omitempty"`
}

// StateStore persists session keys to a JSON file so devices do not have
// to be re-bound after a restart.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store writing to the given path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Save writes a snapshot of the registry to disk.
func (s *StateStore) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	snap := savedState{
		Version: stateVersion,
		SavedAt: time.Now(),
	}
	for _, d := range state.Devices() {
		sd := savedDevice{
			Mac:  d.Mac(),
			Name: d.Info.Name,
			Key:  d.Key,
		}
		if d.IP != nil {
			sd.IP = d.IP.String()
		}
		if d.Key != "" {
			sd.BoundAt = d.Updated
		}
		snap.Devices = append(snap.Devices, sd)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Load reads saved session keys and seeds them into the registry.
// A missing file is an empty snapshot, not an error. Only keys are
// restored; devices reappear in the registry through the next scan,
// which carries these keys forward.
func (s *StateStore) Load(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap savedState
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	for _, sd := range snap.Devices {
		if sd.Key == "" {
			continue
		}
		state.seedKey(sd.Mac, sd.Key)
	}
	return nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
