// Package memory provides an in-memory bucket store used for tests and
// ephemeral environments, and as the hydrated cache behind the SQL backends.
package memory

import (
	"context"
	"sync"

	"curetrack/internal/infra/persistence"
)

// Compile-time contract assertion.
var _ persistence.Buckets = (*Store)(nil)

// Snapshot is a point-in-time copy of every bucket.
type Snapshot map[string][]byte

// Store keeps bucket payloads in process memory.
type Store struct {
	mu      sync.RWMutex
	buckets map[string][]byte
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[string][]byte)}
}

// Read returns a copy of the bucket payload, or nil when absent.
func (s *Store) Read(_ context.Context, bucket string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.buckets[bucket]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

// Write replaces the bucket payload.
func (s *Store) Write(_ context.Context, bucket string, payload []byte) error {
	s.mu.Lock()
	s.buckets[bucket] = append([]byte(nil), payload...)
	s.mu.Unlock()
	return nil
}

// Remove deletes the named buckets; absent buckets are ignored.
func (s *Store) Remove(_ context.Context, buckets ...string) error {
	s.mu.Lock()
	for _, b := range buckets {
		delete(s.buckets, b)
	}
	s.mu.Unlock()
	return nil
}

// ExportState returns a deep copy of every bucket.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.buckets))
	for k, v := range s.buckets {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// ImportState replaces the store contents with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	buckets := make(map[string][]byte, len(snapshot))
	for k, v := range snapshot {
		buckets[k] = append([]byte(nil), v...)
	}
	s.mu.Lock()
	s.buckets = buckets
	s.mu.Unlock()
}
