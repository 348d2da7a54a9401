package msauth

import (
	"context"
	"sync"
)

// Store defines the interface for credential record persistence.
// Implementations must make Save atomic: a crash mid-write must never leave
// a record mixing fields from two different token exchanges.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// MemoryStore is an in-memory Store for tests and single-run tools.
type MemoryStore struct {
	mu     sync.Mutex
	record *Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored record, or ErrNotFound.
func (s *MemoryStore) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil, ErrNotFound
	}
	return s.record.Clone(), nil
}

// Save replaces the stored record with a copy.
func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = record.Clone()
	return nil
}
