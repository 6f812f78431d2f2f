package cache

import (
	"sync"
	"time"
)

// Memory is an in-process Storage. Entries are stored by value under a
// lock, so a reader always sees one complete entry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Read(key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Write(key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Key = key
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Prune(olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.Timestamp.Before(olderThan) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
