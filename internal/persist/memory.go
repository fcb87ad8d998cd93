package persist

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests (SPEC_FULL.md §10.4).
type MemoryStore struct {
	mu   sync.Mutex
	ints map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ints: map[string]int{}}
}

func (m *MemoryStore) GetInt(_ context.Context, key string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *MemoryStore) SetInt(_ context.Context, key string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key] = value
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
