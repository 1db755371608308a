package tracker

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an ephemeral Store backed by sync.Map. Execution state is
// write-heavy with an independent key per run, the access pattern sync.Map
// is built for; records do not survive a process restart.
type MemoryStore struct {
	records sync.Map // execution id -> *Execution
}

// NewMemoryStore creates an empty in-memory execution store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Create implements Store. Ids are minted by the tracker, so a collision is
// a programming error, not a caller mistake.
func (s *MemoryStore) Create(_ context.Context, e *Execution) error {
	if _, loaded := s.records.LoadOrStore(e.ID, e.Clone()); loaded {
		return fmt.Errorf("execution id %q already exists", e.ID)
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Execution, error) {
	v, ok := s.records.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Execution).Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, e *Execution) error {
	if _, ok := s.records.Load(e.ID); !ok {
		return ErrNotFound
	}
	s.records.Store(e.ID, e.Clone())
	return nil
}
