package cache

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/graphsync/internal/model"
)

// Memory is an in-process Cache. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]model.CacheEntry
	states  map[string]*model.CacheState
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]model.CacheEntry),
		states:  make(map[string]*model.CacheState),
	}
}

func (m *Memory) GetState(_ context.Context, collection string) (*model.CacheState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[collection]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) SetState(_ context.Context, collection string, state model.FetchState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[collection] = &model.CacheState{
		Collection: collection,
		State:      state,
		UpdatedAt:  time.Now().UTC(),
	}
	return nil
}

func (m *Memory) Put(_ context.Context, collection string, entries ...model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[collection] = append(m.entries[collection], entries...)
	return nil
}

// ForEach visits a snapshot of the collection taken when the call starts,
// so visitors may call Put without deadlocking.
func (m *Memory) ForEach(ctx context.Context, collection string, visit Visitor) error {
	m.mu.RLock()
	snapshot := m.entries[collection]
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, collection)
	delete(m.states, collection)
	return nil
}

// Close is a no-op for the memory cache.
func (m *Memory) Close() error {
	return nil
}
