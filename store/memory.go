package store

import (
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps the registry and the activity log in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	errors   map[string]ErrorConfig
	activity []ActivityRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		errors: make(map[string]ErrorConfig),
	}
}

func (m *MemoryStore) Upsert(entries []ErrorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		token, cfg, err := e.Validate()
		if err != nil {
			return err
		}
		m.errors[token] = cfg
	}
	return nil
}

func (m *MemoryStore) Replace(entries []ErrorEntry) error {
	configs, err := validateAll(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.errors = configs
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Lookup(token string) (ErrorConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.errors[token]
	return cfg, ok, nil
}

func (m *MemoryStore) ErrorTokens() (map[string]ErrorConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.errors), nil
}

func (m *MemoryStore) ClearErrorTokens() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.errors)
	return nil
}

func (m *MemoryStore) Append(rec ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, rec)
	return nil
}

// Activity returns a copy of the log in append order.
func (m *MemoryStore) Activity() ([]ActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.activity)
	if out == nil {
		out = []ActivityRecord{}
	}
	return out, nil
}

func (m *MemoryStore) ActivityCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activity), nil
}

func (m *MemoryStore) ClearActivity() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = nil
	return nil
}

func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.errors)
	m.activity = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }
