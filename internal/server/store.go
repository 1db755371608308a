package server

import (
	"sort"
	"sync"

	"github.com/vk/flowstack/internal/workflow"
)

// WorkflowStore persists validated graphs. Graphs are cloned on both sides
// of the boundary so handlers and callers never share mutable state.
type WorkflowStore interface {
	Put(g *workflow.Graph)
	Get(id string) (*workflow.Graph, bool)
	Delete(id string) bool
	List() []*workflow.Graph
}

// MemoryWorkflowStore is the default single-process store.
type MemoryWorkflowStore struct {
	mu     sync.RWMutex
	graphs map[string]*workflow.Graph
}

func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{graphs: make(map[string]*workflow.Graph)}
}

func (s *MemoryWorkflowStore) Put(g *workflow.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.ID] = g.Clone()
}

func (s *MemoryWorkflowStore) Get(id string) (*workflow.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

func (s *MemoryWorkflowStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[id]; !ok {
		return false
	}
	delete(s.graphs, id)
	return true
}

func (s *MemoryWorkflowStore) List() []*workflow.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*workflow.Graph, 0, len(s.graphs))
	for _, g := range s.graphs {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
