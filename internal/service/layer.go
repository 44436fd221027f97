package service

import (
	"sort"
	"sync"
)

// DefaultsFunc returns the built-in default record for an overlay, or an
// empty record for ids it does not know.
type DefaultsFunc func(overlayID string) LayerConfig

// ChangeFunc is told about every configuration change with the new merged
// record.
type ChangeFunc func(overlayID string, cfg LayerConfig)

// ConfigStore manages per-overlay configuration records. It stores only what
// callers wrote; reads merge that over the overlay's default record, so
// downstream code never needs per-property fallbacks.
type ConfigStore struct {
	defaults DefaultsFunc
	records  map[string]LayerConfig
	subs     map[int]ChangeFunc
	nextSub  int
	mu       sync.RWMutex
}

// NewConfigStore creates an empty store.
func NewConfigStore(defaults DefaultsFunc) *ConfigStore {
	if defaults == nil {
		defaults = func(string) LayerConfig { return LayerConfig{} }
	}
	return &ConfigStore{
		defaults: defaults,
		records:  make(map[string]LayerConfig),
		subs:     make(map[int]ChangeFunc),
	}
}

// Get returns the merged record for id. It never fails.
func (s *ConfigStore) Get(id string) LayerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged(id)
}

// Default returns the built-in default record for id.
func (s *ConfigStore) Default(id string) LayerConfig {
	return s.defaults(id).Clone()
}

// Update shallow-merges partial onto the record for id and returns the new
// merged record. Subscribers are notified.
func (s *ConfigStore) Update(id string, partial map[string]any) (LayerConfig, error) {
	norm, err := Normalize(partial)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		rec = LayerConfig{}
	}
	s.records[id] = rec.Merge(norm)
	cfg := s.merged(id)
	s.mu.Unlock()

	s.notify(id, cfg)
	return cfg, nil
}

// Reset drops everything written for id, restoring its default record.
func (s *ConfigStore) Reset(id string) LayerConfig {
	s.mu.Lock()
	delete(s.records, id)
	cfg := s.merged(id)
	s.mu.Unlock()

	s.notify(id, cfg)
	return cfg
}

// Export returns a copy of every stored record, keyed by overlay id.
func (s *ConfigStore) Export() map[string]LayerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]LayerConfig, len(s.records))
	for k, v := range s.records {
		result[k] = v.Clone()
	}
	return result
}

// Import replaces all stored records with snapshot and notifies for every id
// whose record was replaced or dropped.
func (s *ConfigStore) Import(snapshot map[string]LayerConfig) {
	s.mu.Lock()
	touched := make(map[string]bool, len(snapshot)+len(s.records))
	for id := range s.records {
		touched[id] = true
	}
	s.records = make(map[string]LayerConfig, len(snapshot))
	for id, rec := range snapshot {
		s.records[id] = rec.Clone()
		touched[id] = true
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	merged := make([]LayerConfig, len(ids))
	for i, id := range ids {
		merged[i] = s.merged(id)
	}
	s.mu.Unlock()

	for i, id := range ids {
		s.notify(id, merged[i])
	}
}

// Subscribe registers fn for change notifications. Notifications run on the
// goroutine that made the change.
func (s *ConfigStore) Subscribe(fn ChangeFunc) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *ConfigStore) merged(id string) LayerConfig {
	return s.defaults(id).Merge(s.records[id])
}

func (s *ConfigStore) notify(id string, cfg LayerConfig) {
	s.mu.RLock()
	keys := make([]int, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]ChangeFunc, 0, len(keys))
	for _, k := range keys {
		fns = append(fns, s.subs[k])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(id, cfg.Clone())
	}
}
