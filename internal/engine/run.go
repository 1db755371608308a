package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/flowstack/internal/ctxlog"
	"github.com/vk/flowstack/internal/metrics"
	"github.com/vk/flowstack/internal/tracker"
	"github.com/vk/flowstack/internal/workflow"
)

// nodeState is the lifecycle of a single node inside one run.
type nodeState int32

const (
	nodePending nodeState = iota
	nodeRunning
	nodeDone
	nodeFailed
	nodeSkipped
)

// execNode is the runtime shadow of a graph node.
type execNode struct {
	node *workflow.Node

	// depCount is decremented as upstream nodes finish; the node becomes
	// ready when it hits zero.
	depCount atomic.Int32
	state    atomic.Int32

	// dependents are node ids unblocked by this node finishing.
	dependents []string
	// inbound maps each input handle to the edge feeding it.
	inbound map[string]workflow.Edge

	// outputs holds this node's produced values keyed by output handle.
	// Written once by the owning worker before state flips to done.
	outputs map[string]any

	failure error
}

// run is the mutable state of one execution of a graph.
type run struct {
	graph  *workflow.Graph
	nodes  map[string]*execNode
	order  []string
	entry  *execNode
	output *execNode

	ready chan *execNode
	wg    sync.WaitGroup

	mu     sync.Mutex
	failed []string
}

// newRun builds the dependency bookkeeping for a validated graph.
func newRun(g *workflow.Graph, topoOrder []string) (*run, error) {
	if len(topoOrder) != len(g.Nodes) {
		return nil, fmt.Errorf("topological order covers %d of %d nodes", len(topoOrder), len(g.Nodes))
	}

	r := &run{
		graph: g,
		nodes: make(map[string]*execNode, len(g.Nodes)),
		order: topoOrder,
		ready: make(chan *execNode, len(g.Nodes)),
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		en := &execNode{
			node:    n,
			inbound: make(map[string]workflow.Edge),
			outputs: make(map[string]any),
		}
		r.nodes[n.ID] = en
		switch n.Kind {
		case workflow.KindUserQuery:
			r.entry = en
		case workflow.KindOutput:
			r.output = en
		}
	}
	if r.entry == nil || r.output == nil {
		return nil, fmt.Errorf("graph %q is missing its entry or output node", g.ID)
	}

	for _, edge := range g.Edges {
		src, ok := r.nodes[edge.SourceNodeID]
		if !ok {
			return nil, fmt.Errorf("edge %s references unknown node %q", edge, edge.SourceNodeID)
		}
		dst, ok := r.nodes[edge.TargetNodeID]
		if !ok {
			return nil, fmt.Errorf("edge %s references unknown node %q", edge, edge.TargetNodeID)
		}
		src.dependents = append(src.dependents, edge.TargetNodeID)
		dst.inbound[edge.TargetHandle] = edge
		dst.depCount.Add(1)
	}
	for _, en := range r.nodes {
		sort.Strings(en.dependents)
	}
	return r, nil
}

// rootCause reports the failure of the first failed node in topological
// order, so the run error is deterministic even when branches race.
func (r *run) rootCause() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := make(map[string]int, len(r.order))
	for i, id := range r.order {
		pos[id] = i
	}
	sort.Slice(r.failed, func(i, j int) bool { return pos[r.failed[i]] < pos[r.failed[j]] })
	for _, id := range r.failed {
		if en := r.nodes[id]; en.failure != nil {
			return fmt.Sprintf("node %s: %v", id, en.failure)
		}
	}
	return "execution failed"
}

// runGraph dispatches ready nodes to a worker pool until every node has
// reached a terminal state or the context is cancelled.
func (e *Engine) runGraph(ctx context.Context, run *run, executionID, queryText string) {
	logger := ctxlog.FromContext(ctx)

	workers := e.workers
	if workers > len(run.nodes) {
		workers = len(run.nodes)
	}
	for i := 0; i < workers; i++ {
		go e.worker(ctx, run, executionID, queryText)
	}

	// Seed the pool with every zero-dependency node. Validation guarantees
	// that is exactly the entry node, but the loop keeps the invariant local.
	run.wg.Add(len(run.nodes))
	for _, id := range run.order {
		en := run.nodes[id]
		if en.depCount.Load() == 0 {
			run.ready <- en
		}
	}

	done := make(chan struct{})
	go func() {
		run.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("Execution interrupted before all nodes settled.", "cause", ctx.Err())
		// Sweep everything still pending so the wait group can drain once
		// the in-flight nodes return.
		for _, en := range run.nodes {
			if en.state.CompareAndSwap(int32(nodePending), int32(nodeSkipped)) {
				run.wg.Done()
			}
		}
		<-done
	}
	close(run.ready)
}

// worker claims nodes off the ready channel. Exactly one wait-group slot is
// released per node, by whichever goroutine moves it out of pending.
func (e *Engine) worker(ctx context.Context, run *run, executionID, queryText string) {
	for en := range run.ready {
		if ctx.Err() != nil {
			if en.state.CompareAndSwap(int32(nodePending), int32(nodeSkipped)) {
				run.wg.Done()
			}
			continue
		}
		if !en.state.CompareAndSwap(int32(nodePending), int32(nodeRunning)) {
			continue
		}
		e.runNode(ctx, run, en, executionID, queryText)
		run.wg.Done()
	}
}

func (e *Engine) runNode(ctx context.Context, run *run, en *execNode, executionID, queryText string) {
	logger := ctxlog.FromContext(ctx).With("nodeID", en.node.ID, "kind", en.node.Kind)
	e.log(ctx, executionID, "info", en.node.ID, fmt.Sprintf("%s node started", en.node.Kind))
	started := time.Now()

	err := e.evalNode(ctx, run, en, executionID, queryText)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		en.failure = err
		en.state.Store(int32(nodeFailed))
		run.mu.Lock()
		run.failed = append(run.failed, en.node.ID)
		run.mu.Unlock()
		logger.Error("Node failed.", "error", err, "duration", time.Since(started))
		e.log(ctx, executionID, "error", en.node.ID, err.Error())
		e.skipDependents(ctx, run, en, executionID)
	} else {
		en.state.Store(int32(nodeDone))
		logger.Info("Node finished.", "duration", time.Since(started))
		e.log(ctx, executionID, "info", en.node.ID, fmt.Sprintf("%s node completed", en.node.Kind))
		for _, depID := range en.dependents {
			dep := run.nodes[depID]
			if dep.depCount.Add(-1) == 0 && dep.state.Load() == int32(nodePending) {
				run.ready <- dep
			}
		}
	}
	metrics.NodeDuration.WithLabelValues(string(en.node.Kind), outcome).Observe(time.Since(started).Seconds())
}

// skipDependents marks the whole downstream cone of a failed node skipped.
// Only the failed branch is torn down; independent branches keep running.
func (e *Engine) skipDependents(ctx context.Context, run *run, en *execNode, executionID string) {
	for _, depID := range en.dependents {
		dep := run.nodes[depID]
		if !dep.state.CompareAndSwap(int32(nodePending), int32(nodeSkipped)) {
			continue
		}
		e.log(ctx, executionID, "warning", dep.node.ID, "skipped: upstream node failed")
		run.wg.Done()
		e.skipDependents(ctx, run, dep, executionID)
	}
}

// value returns the output another node produced on the given handle.
// Callers only ask for values of upstream nodes that already finished.
func (r *run) value(nodeID, handle string) (any, bool) {
	en, ok := r.nodes[nodeID]
	if !ok || en.state.Load() != int32(nodeDone) {
		return nil, false
	}
	v, ok := en.outputs[handle]
	return v, ok
}

// log appends one entry to the execution record, tolerating a record that a
// concurrent cancel already finalized.
func (e *Engine) log(ctx context.Context, executionID, level, nodeID, message string) {
	err := e.tracker.Update(ctx, executionID, func(x *tracker.Execution) {
		x.AppendLog(level, nodeID, message)
	})
	if err != nil && err != tracker.ErrTerminal {
		ctxlog.FromContext(ctx).Warn("Could not append execution log.", "error", err)
	}
}
