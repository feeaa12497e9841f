package activity

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Sentinel errors for activities and stores.
var (
	ErrInvalidActivity = errors.New("invalid activity")
	ErrNotFound        = errors.New("activity not found")
)

// Store persists activities.
type Store interface {
	Put(ctx context.Context, a Activity) error
	Get(ctx context.Context, id string) (Activity, error)
	List(ctx context.Context) ([]Activity, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Activity
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Activity)}
}

// Put inserts or replaces an activity.
func (s *MemoryStore) Put(_ context.Context, a Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = a.Clone()
	return nil
}

// Get returns the activity with id.
func (s *MemoryStore) Get(_ context.Context, id string) (Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return Activity{}, ErrNotFound
	}
	return a.Clone(), nil
}

// List returns all activities ordered by ID (creation order for ULIDs).
func (s *MemoryStore) List(_ context.Context) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Activity, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes the activity with id. Missing IDs return ErrNotFound.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
