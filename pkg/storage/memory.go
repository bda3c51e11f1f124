package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore implements Store in process memory. It is safe for
// concurrent use and suits single-run invocations and tests; the catalog
// service needs RedisStore to see manifests written by the refiner.
type MemoryStore struct {
	mu        sync.RWMutex
	manifests map[string]Manifest
}

// NewMemoryStore creates an empty in-memory manifest store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		manifests: make(map[string]Manifest),
	}
}

// Put stores a manifest, replacing any existing one for the dataset.
func (s *MemoryStore) Put(ctx context.Context, m Manifest) error {
	if err := validDataset(m.Dataset); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.manifests[m.Dataset] = m
	return nil
}

// GetLatest retrieves the manifest for a dataset. found is false when no
// run has been recorded.
func (s *MemoryStore) GetLatest(ctx context.Context, dataset string) (Manifest, bool, error) {
	select {
	case <-ctx.Done():
		return Manifest{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, found := s.manifests[dataset]
	return m, found, nil
}

// Datasets returns the recorded dataset names in sorted order.
func (s *MemoryStore) Datasets(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Len returns the number of manifests currently stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.manifests)
}
