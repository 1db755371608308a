// Package adapters defines the narrow interfaces through which the engine
// reaches its external collaborators (ingestion, retrieval, web search,
// inference) and ships HTTP-backed implementations of each. The engine never
// depends on a concrete provider; everything it needs crosses one of these
// boundaries.
package adapters

import (
	"context"
	"fmt"

	"github.com/vk/flowstack/internal/workflow"
)

// ContextChunk is one scored retrieval hit.
type ContextChunk struct {
	DocumentID string  `json:"documentId"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ContextBundle is the concatenated document context a KnowledgeBase node
// hands downstream.
type ContextBundle struct {
	Text   string         `json:"text"`
	Chunks []ContextChunk `json:"chunks,omitempty"`
}

// ResponseBundle is the terminal payload an LLMEngine node produces.
type ResponseBundle struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// InferenceRequest carries everything an inference backend needs for one call.
type InferenceRequest struct {
	ModelID      string
	SystemPrompt string
	Query        string
	Temperature  float64
	Credential   string
}

// Ingestor accepts raw document bytes and produces a DocumentRef whose
// lifecycle the caller can observe.
type Ingestor interface {
	Ingest(ctx context.Context, fileBytes []byte, filename, embeddingCredential string) (workflow.DocumentRef, error)
}

// Retriever produces a similarity-scored context bundle for a query over a
// set of ingested documents.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, docs []workflow.DocumentRef, embeddingCredential string, topK int) (ContextBundle, error)
}

// Searcher performs a web search and returns snippet results.
type Searcher interface {
	Search(ctx context.Context, queryText string) ([]SearchResult, error)
}

// Inferencer invokes a language model.
type Inferencer interface {
	Infer(ctx context.Context, req InferenceRequest) (ResponseBundle, error)
}

// Embedder turns text into embedding vectors. It backs both the ingestion
// pipeline and the retriever; implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, credential string, inputs []string) ([][]float32, error)
}

// The adapter error wrappers classify a failure by the boundary it crossed.
// The engine uses the class to decide between degrading gracefully and
// failing the run; the wrapped cause is preserved for logs.

// IngestionError marks a failure inside the document ingestion boundary.
type IngestionError struct{ Err error }

func (e *IngestionError) Error() string { return fmt.Sprintf("ingestion: %v", e.Err) }
func (e *IngestionError) Unwrap() error { return e.Err }

// RetrievalError marks a failure inside the context retrieval boundary.
type RetrievalError struct{ Err error }

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval: %v", e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// SearchError marks a failure inside the web search boundary.
type SearchError struct{ Err error }

func (e *SearchError) Error() string { return fmt.Sprintf("web search: %v", e.Err) }
func (e *SearchError) Unwrap() error { return e.Err }

// InferenceError marks a failure inside the model inference boundary.
type InferenceError struct{ Err error }

func (e *InferenceError) Error() string { return fmt.Sprintf("inference: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }
