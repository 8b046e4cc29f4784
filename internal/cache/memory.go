package cache

import (
	"context"
	"sync"
)

// Memory is an in-process LRU cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
	order   []string // LRU order, oldest first
	maxSize int
}

// NewMemory creates a memory cache holding at most maxSize entries.
func NewMemory(maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Memory{
		entries: make(map[string]string),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached value and marks it most recently used.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	v, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	m.mu.Lock()
	m.moveToEnd(key)
	m.mu.Unlock()
	return v, true, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		m.entries[key] = value
		m.moveToEnd(key)
		return nil
	}

	if len(m.entries) >= m.maxSize {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}

	m.entries[key] = value
	m.order = append(m.order, key)
	return nil
}

// Len reports the current entry count.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) moveToEnd(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			m.order = append(m.order, key)
			return
		}
	}
}
