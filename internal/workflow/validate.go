package workflow

import (
	"fmt"
	"sort"
)

// Validate checks a graph against the structural rules and, on success,
// returns its nodes in a deterministic topological order: for every edge
// u -> v, u precedes v, and ties between independent nodes are broken by
// ascending node id. Validation never partially applies: a graph that fails
// any rule is not executable at all.
//
// Checks run in dependency order: node identity, edge endpoints, cycles,
// handle existence and type compatibility, required-input satisfaction,
// entry uniqueness, output reachability.
func Validate(g *Graph) ([]string, error) {
	byID := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, &DuplicateNodeError{NodeID: n.ID}
		}
		byID[n.ID] = n
	}

	for _, e := range g.Edges {
		if _, ok := byID[e.SourceNodeID]; !ok {
			return nil, &UnknownNodeError{Edge: e, NodeID: e.SourceNodeID}
		}
		if _, ok := byID[e.TargetNodeID]; !ok {
			return nil, &UnknownNodeError{Edge: e, NodeID: e.TargetNodeID}
		}
	}

	// Cycles are detected on the raw edge-induced graph, before handle
	// checks, so a malformed cycle is reported as a cycle rather than as
	// whichever handle error the walk happens to hit first.
	if err := detectCycle(g, byID); err != nil {
		return nil, err
	}

	// Every edge's source handle must exist on its source kind, its target
	// handle on its target kind, and the two port types must agree.
	for _, e := range g.Edges {
		src := byID[e.SourceNodeID]
		dst := byID[e.TargetNodeID]
		out, ok := OutputPort(src.Kind, e.SourceHandle)
		if !ok {
			return nil, &UnknownHandleError{Edge: e, NodeID: src.ID, Kind: src.Kind, Handle: e.SourceHandle}
		}
		in, ok := InputPort(dst.Kind, e.TargetHandle)
		if !ok {
			return nil, &UnknownHandleError{Edge: e, NodeID: dst.ID, Kind: dst.Kind, Handle: e.TargetHandle}
		}
		if out.Type != in.Type {
			return nil, &TypeMismatchError{Edge: e, Expected: in.Type, Actual: out.Type}
		}
	}

	// Every declared required input needs exactly one incoming edge.
	incoming := make(map[string]map[string]int) // node id -> handle -> edge count
	for _, e := range g.Edges {
		if incoming[e.TargetNodeID] == nil {
			incoming[e.TargetNodeID] = make(map[string]int)
		}
		incoming[e.TargetNodeID][e.TargetHandle]++
	}
	for _, n := range g.Nodes {
		for _, p := range InputPorts(n.Kind) {
			count := incoming[n.ID][p.Name]
			if p.Required && count == 0 {
				return nil, &UnsatisfiedInputError{NodeID: n.ID, Handle: p.Name}
			}
			if count > 1 {
				return nil, fmt.Errorf("node %q: input %q has %d incoming edges, want at most 1", n.ID, p.Name, count)
			}
		}
	}

	// Exactly one entry node: a UserQuery with no incoming data edges.
	var entries []string
	for _, n := range g.Nodes {
		if n.Kind == KindUserQuery && len(incoming[n.ID]) == 0 {
			entries = append(entries, n.ID)
		}
	}
	if len(entries) != 1 {
		sort.Strings(entries)
		return nil, &AmbiguousEntryError{Candidates: entries}
	}

	// Exactly one Output node, and it must be reachable from the entry.
	if err := checkOutputReachable(g, entries[0]); err != nil {
		return nil, err
	}

	return topoOrder(g), nil
}

// detectCycle runs a depth-first search over the data-dependency edges,
// tracking the nodes currently on the recursion stack. Encountering an
// on-stack node means a back-edge, and the stack slice from its first
// occurrence is the cycle path.
func detectCycle(g *Graph, byID map[string]Node) error {
	succ := successors(g)

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		state[id] = onStack
		stack = append(stack, id)
		for _, next := range succ[id] {
			switch state[next] {
			case onStack:
				start := 0
				for i, v := range stack {
					if v == next {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), next)
				return &CycleError{Path: path}
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	// Iterate in id order so the reported cycle is stable across runs.
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// topoOrder produces the execution order via Kahn's algorithm with a sorted
// ready set. Callers must have already established acyclicity.
func topoOrder(g *Graph) []string {
	succ := successors(g)
	indegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		indegree[e.TargetNodeID]++
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range succ[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}
	return order
}

func checkOutputReachable(g *Graph, entry string) error {
	var outputs []string
	for _, n := range g.Nodes {
		if n.Kind == KindOutput {
			outputs = append(outputs, n.ID)
		}
	}
	if len(outputs) != 1 {
		return fmt.Errorf("graph must contain exactly one Output node, found %d", len(outputs))
	}

	succ := successors(g)
	seen := map[string]bool{entry: true}
	frontier := []string{entry}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, next := range succ[id] {
			if !seen[next] {
				seen[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	if !seen[outputs[0]] {
		return fmt.Errorf("output node %q is not reachable from entry node %q", outputs[0], entry)
	}
	return nil
}

// successors builds the adjacency list over data-dependency edges. A node
// pair connected through multiple handle pairs appears once per edge, which
// keeps indegree bookkeeping aligned with edge counts.
func successors(g *Graph) map[string][]string {
	succ := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		succ[e.SourceNodeID] = append(succ[e.SourceNodeID], e.TargetNodeID)
	}
	for id := range succ {
		sort.Strings(succ[id])
	}
	return succ
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
