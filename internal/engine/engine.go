package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/flowstack/internal/adapters"
	"github.com/vk/flowstack/internal/ctxlog"
	"github.com/vk/flowstack/internal/metrics"
	"github.com/vk/flowstack/internal/tracker"
	"github.com/vk/flowstack/internal/workflow"
)

const (
	defaultWorkerCount = 4
	defaultRunBudget   = 5 * time.Minute

	// retrievalTopK is how many chunks a KnowledgeBase node pulls per query.
	retrievalTopK = 5

	// persistGrace bounds the terminal-state write, which must land even
	// after the run context itself is cancelled.
	persistGrace = 5 * time.Second
)

// Adapters bundles the external collaborators the engine dispatches to.
type Adapters struct {
	Retriever  adapters.Retriever
	Searcher   adapters.Searcher
	Inferencer adapters.Inferencer
}

// Engine turns validated graphs into tracked, concurrent executions.
type Engine struct {
	tracker  *tracker.Tracker
	adapters Adapters
	workers  int
	budget   time.Duration

	// cancels maps live execution ids to their cancel functions.
	cancels sync.Map
}

// Option customizes an Engine.
type Option func(*Engine)

// WithWorkerCount sets the per-execution worker pool size.
func WithWorkerCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRunBudget sets the wall-clock ceiling per execution. A run that
// exceeds it is treated exactly like a cancelled run.
func WithRunBudget(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.budget = d
		}
	}
}

// New builds an engine over the given tracker and adapters.
func New(tr *tracker.Tracker, a Adapters, opts ...Option) *Engine {
	e := &Engine{
		tracker:  tr,
		adapters: a,
		workers:  defaultWorkerCount,
		budget:   defaultRunBudget,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle identifies a started execution and carries its cancel hook.
type Handle struct {
	ExecutionID string
	cancel      context.CancelFunc
}

// Cancel requests cooperative cancellation: no further nodes are dispatched
// and the run terminates Failed with error "cancelled".
func (h *Handle) Cancel() {
	h.cancel()
}

// Execute starts a run of the graph and returns immediately. The graph is
// deep-copied first, so the caller keeps exclusive ownership of its value;
// topoOrder must come from workflow.Validate on the same graph. queryText
// seeds the entry node, overriding its configured query when non-empty.
func (e *Engine) Execute(ctx context.Context, g *workflow.Graph, topoOrder []string, queryText string) (*Handle, error) {
	run, err := newRun(g.Clone(), topoOrder)
	if err != nil {
		return nil, err
	}

	exec, err := e.tracker.Begin(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	// The run outlives the request context; only cancellation and the wall
	// budget bound it.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.budget)
	e.cancels.Store(exec.ID, cancel)

	go func() {
		defer cancel()
		defer e.cancels.Delete(exec.ID)
		e.drive(runCtx, run, exec.ID, queryText)
	}()

	return &Handle{ExecutionID: exec.ID, cancel: cancel}, nil
}

// Cancel cancels a live execution by id. Unknown or already-finished ids
// return tracker.ErrNotFound.
func (e *Engine) Cancel(executionID string) error {
	v, ok := e.cancels.Load(executionID)
	if !ok {
		return tracker.ErrNotFound
	}
	v.(context.CancelFunc)()
	return nil
}

// drive runs the whole lifecycle of one execution on the caller goroutine.
func (e *Engine) drive(ctx context.Context, run *run, executionID, queryText string) {
	logger := ctxlog.FromContext(ctx).With("executionID", executionID, "workflowID", run.graph.ID)
	ctx = ctxlog.WithLogger(ctx, logger)
	started := time.Now()

	if err := e.tracker.Update(ctx, executionID, func(x *tracker.Execution) {
		x.Status = tracker.StatusRunning
		x.AppendLog("info", "", fmt.Sprintf("execution started with %d nodes", len(run.nodes)))
	}); err != nil {
		logger.Error("Failed to mark execution running.", "error", err)
		return
	}

	e.runGraph(ctx, run, executionID, queryText)

	status := e.finalize(ctx, run, executionID)
	metrics.ExecutionsTotal.WithLabelValues(string(status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(status)).Observe(time.Since(started).Seconds())
	logger.Info("Execution finished.", "status", status, "duration", time.Since(started))
}

// finalize inspects the output node and moves the execution to its terminal
// state. An Output node that finished wins even when cancellation or the
// budget fired in the same instant; otherwise a cancelled or over-budget run
// fails with error "cancelled" regardless of how far the graph got.
func (e *Engine) finalize(ctx context.Context, run *run, executionID string) tracker.Status {
	logger := ctxlog.FromContext(ctx)

	var status tracker.Status
	var cause string
	switch {
	case run.output.state.Load() == int32(nodeDone):
		status = tracker.StatusCompleted
	case ctx.Err() != nil:
		status = tracker.StatusFailed
		cause = "cancelled"
	default:
		status = tracker.StatusFailed
		cause = run.rootCause()
	}

	// The run context is already dead on the cancellation path; the write
	// must not ride it or ctx-honoring stores drop the transition.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistGrace)
	defer cancel()

	err := e.tracker.Update(persistCtx, executionID, func(x *tracker.Execution) {
		x.Status = status
		x.Error = cause
		if cause != "" {
			x.AppendLog("error", "", cause)
		}
	})
	if err != nil {
		// A concurrent writer already finalized the record; its outcome
		// stands.
		logger.Debug("Terminal transition skipped.", "error", err)
	}
	return status
}
