package prefs

import (
	"context"
	"sync"
)

// MapSource is an in-memory Source and Writer.
type MapSource struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMapSource creates a MapSource seeded with values (which it copies).
func NewMapSource(values map[string]any) *MapSource {
	m := &MapSource{values: make(map[string]any, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Lookup implements Source.
func (m *MapSource) Lookup(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Writer.
func (m *MapSource) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MapSource) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// All implements Lister.
func (m *MapSource) All(_ context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}
