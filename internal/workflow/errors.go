package workflow

import (
	"fmt"
	"strings"
)

// CycleError reports a cycle among data-dependency edges. Path holds the
// node ids along the cycle, ending where it started.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// UnsatisfiedInputError reports a required input handle with no incoming edge.
type UnsatisfiedInputError struct {
	NodeID string
	Handle string
}

func (e *UnsatisfiedInputError) Error() string {
	return fmt.Sprintf("node %q: required input %q has no incoming edge", e.NodeID, e.Handle)
}

// TypeMismatchError reports an edge whose source handle produces a different
// type than its target handle accepts.
type TypeMismatchError struct {
	Edge     Edge
	Expected PortType
	Actual   PortType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("edge %s: target expects %s but source produces %s", e.Edge, e.Expected, e.Actual)
}

// AmbiguousEntryError reports zero or more than one eligible entry node.
type AmbiguousEntryError struct {
	Candidates []string
}

func (e *AmbiguousEntryError) Error() string {
	if len(e.Candidates) == 0 {
		return "no entry node: expected exactly one UserQuery node with no incoming edges"
	}
	return fmt.Sprintf("ambiguous entry: multiple candidate entry nodes (%s)", strings.Join(e.Candidates, ", "))
}

// DuplicateNodeError reports a node id used more than once in a graph.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node id %q", e.NodeID)
}

// UnknownNodeError reports an edge endpoint that names a node the graph does
// not contain.
type UnknownNodeError struct {
	Edge   Edge
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge %s references unknown node %q", e.Edge, e.NodeID)
}

// UnknownHandleError reports an edge endpoint that names a handle the node's
// kind does not declare.
type UnknownHandleError struct {
	Edge   Edge
	NodeID string
	Kind   NodeKind
	Handle string
}

func (e *UnknownHandleError) Error() string {
	return fmt.Sprintf("edge %s: node %q (%s) has no handle %q", e.Edge, e.NodeID, e.Kind, e.Handle)
}
