package progress

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps statuses in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*atomic.Pointer[Status]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*atomic.Pointer[Status])}
}

func (m *MemoryStore) Put(_ context.Context, key string, status Status) error {
	m.mu.RLock()
	slot, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if slot, ok = m.entries[key]; !ok {
			slot = new(atomic.Pointer[Status])
			m.entries[key] = slot
		}
		m.mu.Unlock()
	}
	slot.Store(&status)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (Status, bool, error) {
	m.mu.RLock()
	slot, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Status{}, false, nil
	}
	current := slot.Load()
	if current == nil {
		return Status{}, false, nil
	}
	return *current, true, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	entries := make([]Entry, 0, len(m.entries))
	for key, slot := range m.entries {
		if current := slot.Load(); current != nil {
			entries = append(entries, Entry{Key: key, Status: *current})
		}
	}
	m.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *MemoryStore) Close() error { return nil }
