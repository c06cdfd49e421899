// Package state implements the per-session key/value store. A store
// outlives every frame and iteration of its session, is never shared
// across sessions, and is cleared only on teardown.
package state

import (
	"context"
	"maps"
	"sync"
)

// Store is the session state surface exposed to scripts through
// state.get / state.set. Snapshot feeds the trigger evaluator a
// read-only view; Clear runs on session teardown when the retention
// policy says so.
type Store interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Snapshot(ctx context.Context) (map[string]any, error)
	Clear(ctx context.Context) error
}

// Memory is the default in-process store. Within a session mutation is
// serialized by the cooperative execution order; the mutex only guards
// snapshot reads taken by observers outside the session goroutine.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Snapshot(_ context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values), nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]any)
	return nil
}
