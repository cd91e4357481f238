package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used for tests and throwaway deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]Asset
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[string]Asset)}
}

func (s *MemoryStore) Create(_ context.Context, a Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID, id string) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok || a.OwnerID != ownerID {
		return Asset{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var assets []Asset
	for _, a := range s.assets {
		if a.OwnerID == ownerID {
			assets = append(assets, a)
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID > assets[j].ID
		}
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return assets, nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok || a.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.assets, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
