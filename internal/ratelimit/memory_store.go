package ratelimit

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in a map. Used in tests and single-process dev
// setups where counters need not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]Counter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]Counter)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.counters[key]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, c *Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] = *c
	return nil
}
