package storage

import (
	"sync"
)

// MemoryStore keeps encoded snapshots in memory.
// Values are stored encoded so later mutation of v never leaks into the store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
	saves int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Load(name string, v any) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	data, ok := s.items[name]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := decode(name, data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Save(name string, v any) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := encode(name, v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[name] = data
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Names returns every saved key.
func (s *MemoryStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for name := range s.items {
		out = append(out, name)
	}
	return out
}
