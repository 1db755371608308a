package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginCreatesPendingExecution(t *testing.T) {
	tr := New(NewMemoryStore())

	e, err := tr.Begin(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "wf-1", e.WorkflowID)
	assert.Equal(t, StatusPending, e.Status)
	assert.False(t, e.StartedAt.IsZero())
	assert.Nil(t, e.CompletedAt)
}

func TestBeginMintsDistinctIDs(t *testing.T) {
	tr := New(NewMemoryStore())

	a, err := tr.Begin(context.Background(), "wf-1")
	require.NoError(t, err)
	b, err := tr.Begin(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestGetUnknownID(t *testing.T) {
	tr := New(NewMemoryStore())

	_, err := tr.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)
	require.NoError(t, tr.Update(ctx, e.ID, func(e *Execution) {
		e.OutputData = map[string]any{"response": "Paris"}
		e.AppendLog("info", "llm", "done")
	}))

	snap, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	snap.OutputData["response"] = "mutated"
	snap.Log[0].Message = "mutated"

	fresh, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paris", fresh.OutputData["response"])
	assert.Equal(t, "done", fresh.Log[0].Message)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)
	require.NoError(t, tr.Update(ctx, e.ID, func(e *Execution) { e.Status = StatusFailed; e.Error = "cancelled" }))

	err = tr.Update(ctx, e.ID, func(e *Execution) { e.Status = StatusCompleted })
	assert.ErrorIs(t, err, ErrTerminal)

	snap, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "cancelled", snap.Error)
	require.NotNil(t, snap.CompletedAt)
}

func TestConcurrentUpdatesDoNotLoseLogLines(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = tr.Update(ctx, e.ID, func(e *Execution) { e.AppendLog("info", "", "line") })
		}()
	}
	wg.Wait()

	snap, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Log, writers)
}

func TestPollReturnsTerminalSnapshot(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = tr.Update(ctx, e.ID, func(e *Execution) { e.Status = StatusCompleted })
	}()

	got, err := tr.Poll(ctx, e.ID, 5*time.Millisecond, 50)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestPollExhaustionReturnsTimeoutWithoutMutating(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)

	before, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)

	_, err = tr.Poll(ctx, e.ID, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrTimeout)

	after, err := tr.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Log, after.Log)
}

func TestPollProbesExactlyMaxAttempts(t *testing.T) {
	store := &countingStore{inner: NewMemoryStore()}
	tr := New(store)
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)

	store.gets.Store(0)
	_, err = tr.Poll(ctx, e.ID, time.Millisecond, 4)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 4, store.gets.Load())
}

func TestPollHonorsContextCancellation(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())

	e, err := tr.Begin(context.Background(), "wf-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = tr.Poll(ctx, e.ID, time.Hour, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollRejectsNonPositiveAttempts(t *testing.T) {
	tr := New(NewMemoryStore())
	_, err := tr.Poll(context.Background(), "x", time.Millisecond, 0)
	assert.ErrorContains(t, err, "maxAttempts")
}

func lockCount(tr *Tracker) int {
	n := 0
	tr.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestUpdatePrunesLockOnTerminalTransition(t *testing.T) {
	tr := New(NewMemoryStore())
	ctx := context.Background()

	e, err := tr.Begin(ctx, "wf-1")
	require.NoError(t, err)

	require.NoError(t, tr.Update(ctx, e.ID, func(x *Execution) {
		x.AppendLog("info", "", "running along")
	}))
	assert.Equal(t, 1, lockCount(tr))

	require.NoError(t, tr.Update(ctx, e.ID, func(x *Execution) {
		x.Status = StatusCompleted
	}))
	assert.Zero(t, lockCount(tr))

	// An update against the terminal record recreates the entry briefly
	// and must clean it up again.
	assert.ErrorIs(t, tr.Update(ctx, e.ID, func(*Execution) {}), ErrTerminal)
	assert.Zero(t, lockCount(tr))
}
