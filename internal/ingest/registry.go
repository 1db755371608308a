package ingest

import (
	"errors"
	"sort"
	"sync"

	"github.com/vk/flowstack/internal/workflow"
)

// ErrDocumentNotFound is returned for lookups of unknown document ids.
var ErrDocumentNotFound = errors.New("document not found")

// Registry is the in-memory index of known documents. Refs are stored by
// value, so callers can never mutate registry state through a returned copy.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]workflow.DocumentRef
}

func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]workflow.DocumentRef)}
}

// Put inserts or replaces a ref.
func (r *Registry) Put(ref workflow.DocumentRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[ref.ID] = ref
}

// Get returns the ref with the given id.
func (r *Registry) Get(id string) (workflow.DocumentRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.docs[id]
	return ref, ok
}

// List returns all known refs ordered by display name, then id.
func (r *Registry) List() []workflow.DocumentRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]workflow.DocumentRef, 0, len(r.docs))
	for _, ref := range r.docs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a ref if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
}
