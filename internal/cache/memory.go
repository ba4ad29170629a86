package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// MemoryStore keeps entries in process memory. It backs the "memory" cache
// backend, which trades durability for zero setup, and doubles as the seam
// the engine tests use to observe cache traffic.
type MemoryStore struct {
	mu   sync.Mutex
	data map[schemas.Namespace]map[schemas.CacheKey]schemas.CacheEntry
}

// NewMemoryStore returns an empty in-memory store with both namespaces
// initialized.
func NewMemoryStore() *MemoryStore {
	data := make(map[schemas.Namespace]map[schemas.CacheKey]schemas.CacheEntry, len(schemas.Namespaces()))
	for _, ns := range schemas.Namespaces() {
		data[ns] = make(map[schemas.CacheKey]schemas.CacheEntry)
	}
	return &MemoryStore{data: data}
}

func (s *MemoryStore) bucket(ns schemas.Namespace) (map[schemas.CacheKey]schemas.CacheEntry, error) {
	bucket, ok := s.data[ns]
	if !ok {
		return nil, fmt.Errorf("unknown cache namespace %q", string(ns))
	}
	return bucket, nil
}

// Load copies out the full contents of one namespace.
func (s *MemoryStore) Load(_ context.Context, ns schemas.Namespace) (map[schemas.CacheKey]schemas.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, err := s.bucket(ns)
	if err != nil {
		return nil, err
	}
	out := make(map[schemas.CacheKey]schemas.CacheEntry, len(bucket))
	for k, v := range bucket {
		out[k] = v
	}
	return out, nil
}

// Write upserts one entry.
func (s *MemoryStore) Write(_ context.Context, ns schemas.Namespace, key schemas.CacheKey, entry schemas.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, err := s.bucket(ns)
	if err != nil {
		return err
	}
	bucket[key] = entry
	return nil
}

// Clear drops every entry in one namespace.
func (s *MemoryStore) Clear(_ context.Context, ns schemas.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.bucket(ns); err != nil {
		return err
	}
	s.data[ns] = make(map[schemas.CacheKey]schemas.CacheEntry)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
