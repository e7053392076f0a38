package evalstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memrepo backs the review when no database is configured.
type memrepo struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryRepository() Repository {
	return &memrepo{entries: make(map[string]Entry)}
}

func (m *memrepo) Get(ctx context.Context, fen string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fen]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memrepo) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("nil evaluation entry")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[entry.FEN]; ok && prev.MoveTimeMS > entry.MoveTimeMS {
		return nil
	}
	e := *entry
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	m.entries[e.FEN] = e
	return nil
}
