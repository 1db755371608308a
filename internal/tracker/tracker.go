package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vk/flowstack/internal/ctxlog"
)

var (
	// ErrNotFound reports an unknown execution id.
	ErrNotFound = errors.New("execution not found")
	// ErrTimeout reports client-side polling exhaustion. The underlying run
	// keeps progressing; only the caller's wait gave up.
	ErrTimeout = errors.New("polling timed out")
	// ErrTerminal reports an attempted mutation of a finished execution.
	ErrTerminal = errors.New("execution already in a terminal state")
)

// Store is the persistence boundary beneath a Tracker. Implementations hold
// whole execution records; the Tracker layers ownership, copying, and
// terminal-state guarding on top.
type Store interface {
	Create(ctx context.Context, e *Execution) error
	Get(ctx context.Context, id string) (*Execution, error)
	Put(ctx context.Context, e *Execution) error
}

// Tracker is the exclusive owner of execution records for the lifetime of
// their runs. Writers go through Update, which serializes per-execution;
// readers get deep snapshots and can never observe a half-applied mutation.
type Tracker struct {
	store Store

	// locks holds one mutex per live execution id.
	locks sync.Map
}

// New builds a tracker over the given store.
func New(store Store) *Tracker {
	return &Tracker{store: store}
}

// Begin creates a new Pending execution for a workflow and returns a
// snapshot of it.
func (t *Tracker) Begin(ctx context.Context, workflowID string) (*Execution, error) {
	e := &Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     StatusPending,
		StartedAt:  time.Now().UTC(),
	}
	if err := t.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("creating execution record: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Execution record created.", "executionID", e.ID, "workflowID", workflowID)
	return e.Clone(), nil
}

// Get returns a snapshot of an execution, or ErrNotFound.
func (t *Tracker) Get(ctx context.Context, id string) (*Execution, error) {
	e, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// Update applies fn to the execution under the per-execution lock and
// persists the result. It returns ErrTerminal without calling fn if the
// record already reached a terminal status, which is what makes terminal
// states immutable: a completion racing a cancellation loses cleanly.
func (t *Tracker) Update(ctx context.Context, id string, fn func(*Execution)) error {
	muIface, _ := t.locks.LoadOrStore(id, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	e, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status.Terminal() {
		t.locks.Delete(id)
		return ErrTerminal
	}
	fn(e)
	if e.Status.Terminal() && e.CompletedAt == nil {
		now := time.Now().UTC()
		e.CompletedAt = &now
	}
	if err := t.store.Put(ctx, e); err != nil {
		return err
	}
	// Terminal records are immutable, so their locks have no further use.
	// A racing Update may briefly recreate the entry; it is deleted again
	// when that update observes ErrTerminal.
	if e.Status.Terminal() {
		t.locks.Delete(id)
	}
	return nil
}

// Poll probes an execution's status exactly maxAttempts times at interval
// spacing and returns the first terminal snapshot it sees. Exhausting the
// attempts yields ErrTimeout; the execution itself is never touched. The
// context cancels the wait early.
func (t *Tracker) Poll(ctx context.Context, id string, interval time.Duration, maxAttempts int) (*Execution, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("maxAttempts must be at least 1, got %d", maxAttempts)
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		e, err := t.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.Status.Terminal() {
			return e, nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, ErrTimeout
}
