package workflow

import (
	"encoding/json"
	"fmt"
)

// NodeKind identifies the pipeline stage a node represents.
type NodeKind string

const (
	KindUserQuery     NodeKind = "UserQuery"
	KindKnowledgeBase NodeKind = "KnowledgeBase"
	KindLLMEngine     NodeKind = "LLMEngine"
	KindOutput        NodeKind = "Output"
)

// Kinds lists every node kind in registry order.
func Kinds() []NodeKind {
	return []NodeKind{KindUserQuery, KindKnowledgeBase, KindLLMEngine, KindOutput}
}

// PortType is the semantic type a handle carries between nodes.
type PortType string

const (
	TypeQueryText      PortType = "QueryText"
	TypeContextBundle  PortType = "ContextBundle"
	TypeResponseBundle PortType = "ResponseBundle"
)

// IngestionStatus tracks a document through the ingestion pipeline.
// Ready and Error are terminal.
type IngestionStatus string

const (
	IngestionUploading  IngestionStatus = "Uploading"
	IngestionProcessing IngestionStatus = "Processing"
	IngestionReady      IngestionStatus = "Ready"
	IngestionError      IngestionStatus = "Error"
)

// DocumentRef points at an ingested document a KnowledgeBase node may query.
type DocumentRef struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"displayName"`
	ByteSize        int64           `json:"byteSize"`
	IngestionStatus IngestionStatus `json:"ingestionStatus"`
}

// Node is a single pipeline stage: a kind plus kind-specific configuration.
type Node struct {
	ID     string     `json:"id"`
	Kind   NodeKind   `json:"kind"`
	Config NodeConfig `json:"config"`
}

// Edge is a typed data-dependency link from one node's output handle to
// another node's input handle.
type Edge struct {
	SourceNodeID string `json:"sourceNodeId"`
	SourceHandle string `json:"sourceHandle"`
	TargetNodeID string `json:"targetNodeId"`
	TargetHandle string `json:"targetHandle"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.SourceNodeID, e.SourceHandle, e.TargetNodeID, e.TargetHandle)
}

// Graph is a complete workflow definition. It is a plain value: the engine
// clones it at execution time and never mutates the caller's copy.
type Graph struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy of the graph. Node configs are copied through
// their Clone methods so no mutable state is shared with the original.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Nodes:       make([]Node, len(g.Nodes)),
		Edges:       make([]Edge, len(g.Edges)),
	}
	copy(out.Edges, g.Edges)
	for i, n := range g.Nodes {
		out.Nodes[i] = Node{ID: n.ID, Kind: n.Kind}
		if n.Config != nil {
			out.Nodes[i].Config = n.Config.clone()
		}
	}
	return out
}

// UnmarshalJSON decodes a node, dispatching the config payload to the
// concrete type for the node's kind.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string          `json:"id"`
		Kind   NodeKind        `json:"kind"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := decodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}
	n.ID = raw.ID
	n.Kind = raw.Kind
	n.Config = cfg
	return nil
}
