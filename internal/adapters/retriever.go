package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/flowstack/internal/vectorstore"
	"github.com/vk/flowstack/internal/workflow"
)

// SimilaritySearcher is the slice of the vector store the retriever needs.
type SimilaritySearcher interface {
	QuerySimilar(ctx context.Context, queryEmb []float32, documentIDs []string, topK int) ([]vectorstore.Chunk, error)
}

// VectorRetriever answers context queries by embedding the query text and
// running a similarity search over the pgvector chunk store.
type VectorRetriever struct {
	embedder Embedder
	store    SimilaritySearcher
}

// NewVectorRetriever builds the production retrieval adapter.
func NewVectorRetriever(embedder Embedder, store SimilaritySearcher) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, store: store}
}

// Retrieve implements Retriever. Callers are expected to pass only documents
// that finished ingestion; unknown ids simply contribute no chunks.
func (r *VectorRetriever) Retrieve(ctx context.Context, queryText string, docs []workflow.DocumentRef, embeddingCredential string, topK int) (ContextBundle, error) {
	if len(docs) == 0 {
		return ContextBundle{}, nil
	}

	embs, err := r.embedder.Embed(ctx, embeddingCredential, []string{queryText})
	if err != nil {
		return ContextBundle{}, &RetrievalError{Err: fmt.Errorf("embedding query: %w", err)}
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	chunks, err := r.store.QuerySimilar(ctx, embs[0], ids, topK)
	if err != nil {
		return ContextBundle{}, &RetrievalError{Err: err}
	}

	bundle := ContextBundle{Chunks: make([]ContextChunk, len(chunks))}
	var parts []string
	for i, c := range chunks {
		bundle.Chunks[i] = ContextChunk{DocumentID: c.DocumentID, Content: c.Content, Score: c.Distance}
		parts = append(parts, c.Content)
	}
	bundle.Text = strings.Join(parts, "\n")
	return bundle, nil
}
