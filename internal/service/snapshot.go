package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Snapshot is the persisted engine state: theme, active overlays and every
// stored configuration record.
type Snapshot struct {
	Theme   string                 `json:"theme,omitempty" enum:"light,dark" doc:"Active theme"`
	Active  []string               `json:"active,omitempty" doc:"Active overlays in insertion order"`
	Configs map[string]LayerConfig `json:"configs" doc:"Stored configuration records by overlay id"`
}

// DecodeConfigs normalises raw JSON-shaped records into LayerConfigs.
func DecodeConfigs(raw map[string]map[string]any) (map[string]LayerConfig, error) {
	out := make(map[string]LayerConfig, len(raw))
	for id, rec := range raw {
		cfg, err := Normalize(rec)
		if err != nil {
			return nil, fmt.Errorf("overlay %q: %w", id, err)
		}
		out[id] = cfg
	}
	return out, nil
}

// UnmarshalJSON decodes a snapshot and normalises its records.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Theme   string                    `json:"theme"`
		Active  []string                  `json:"active"`
		Configs map[string]map[string]any `json:"configs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	configs, err := DecodeConfigs(raw.Configs)
	if err != nil {
		return err
	}
	s.Theme = raw.Theme
	s.Active = raw.Active
	s.Configs = configs
	return nil
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// FileStore keeps the snapshot in a JSON file under a data directory.
type FileStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFileStore creates a store writing to dataDir/overlays.json.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

// configFile returns the path to the snapshot file.
func (s *FileStore) configFile() string {
	return filepath.Join(s.dataDir, "overlays.json")
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.configFile())
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{Configs: map[string]LayerConfig{}}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse %s: %w", s.configFile(), err)
	}
	if snap.Configs == nil {
		snap.Configs = map[string]LayerConfig{}
	}
	return snap, nil
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.configFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.configFile())
}
