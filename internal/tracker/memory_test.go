package tracker

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps a Store and counts Get calls, used to pin down the
// exact number of polling probes.
type countingStore struct {
	inner Store
	gets  atomic.Int64
}

func (s *countingStore) Create(ctx context.Context, e *Execution) error { return s.inner.Create(ctx, e) }

func (s *countingStore) Get(ctx context.Context, id string) (*Execution, error) {
	s.gets.Add(1)
	return s.inner.Get(ctx, id)
}

func (s *countingStore) Put(ctx context.Context, e *Execution) error { return s.inner.Put(ctx, e) }

func TestMemoryStoreCreateRejectsDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &Execution{ID: "e1", Status: StatusPending}))
	assert.ErrorContains(t, s.Create(ctx, &Execution{ID: "e1"}), "already exists")
}

func TestMemoryStorePutUnknownID(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Put(context.Background(), &Execution{ID: "ghost"}), ErrNotFound)
}

func TestMemoryStoreStoresCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	e := &Execution{ID: "e1", Status: StatusPending, OutputData: map[string]any{"k": "v"}}
	require.NoError(t, s.Create(ctx, e))
	e.OutputData["k"] = "mutated"

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.OutputData["k"])
}
