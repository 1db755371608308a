// Package ingest turns uploaded documents into embedded, queryable chunks.
// Each document moves through Uploading, Processing, and finally Ready or
// Error; one document failing never affects another.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vk/flowstack/internal/adapters"
	"github.com/vk/flowstack/internal/ctxlog"
	"github.com/vk/flowstack/internal/metrics"
	"github.com/vk/flowstack/internal/workflow"
)

const (
	defaultChunkWords   = 220
	defaultChunkOverlap = 40
)

// ChunkSink is where embedded chunks end up. The pgvector store satisfies
// it; tests swap in an in-memory sink.
type ChunkSink interface {
	InsertChunk(ctx context.Context, documentID, content string, embedding []float32) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Pipeline implements adapters.Ingestor over an embedder and a chunk sink.
type Pipeline struct {
	embedder adapters.Embedder
	sink     ChunkSink
	registry *Registry

	chunkWords   int
	chunkOverlap int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithChunking overrides the chunk window and overlap, both in words.
func WithChunking(words, overlap int) Option {
	return func(p *Pipeline) {
		if words > 0 {
			p.chunkWords = words
		}
		if overlap >= 0 && overlap < words {
			p.chunkOverlap = overlap
		}
	}
}

// New builds a pipeline writing into the given registry and sink.
func New(embedder adapters.Embedder, sink ChunkSink, registry *Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:     embedder,
		sink:         sink,
		registry:     registry,
		chunkWords:   defaultChunkWords,
		chunkOverlap: defaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs the full lifecycle for one document. The returned ref always
// carries a terminal ingestion status; on failure it is Error and the error
// explains why. The ref stays in the registry either way, so callers can
// still list and delete failed documents.
func (p *Pipeline) Ingest(ctx context.Context, fileBytes []byte, filename, embeddingCredential string) (workflow.DocumentRef, error) {
	logger := ctxlog.FromContext(ctx).With("filename", filename)

	ref := workflow.DocumentRef{
		ID:              uuid.NewString(),
		DisplayName:     filename,
		ByteSize:        int64(len(fileBytes)),
		IngestionStatus: workflow.IngestionUploading,
	}
	p.registry.Put(ref)
	started := time.Now()

	ref.IngestionStatus = workflow.IngestionProcessing
	p.registry.Put(ref)

	if err := p.process(ctx, ref.ID, fileBytes, filename, embeddingCredential); err != nil {
		ref.IngestionStatus = workflow.IngestionError
		p.registry.Put(ref)
		metrics.DocumentsIngested.WithLabelValues("error").Inc()
		logger.Error("Document ingestion failed.", "documentID", ref.ID, "error", err)
		return ref, &adapters.IngestionError{Err: err}
	}

	ref.IngestionStatus = workflow.IngestionReady
	p.registry.Put(ref)
	metrics.DocumentsIngested.WithLabelValues("ready").Inc()
	logger.Info("Document ingested.", "documentID", ref.ID, "bytes", ref.ByteSize, "duration", time.Since(started))
	return ref, nil
}

func (p *Pipeline) process(ctx context.Context, documentID string, fileBytes []byte, filename, credential string) error {
	text, err := extractText(fileBytes, filename)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	chunks := chunkText(text, p.chunkWords, p.chunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("document %q contains no extractable text", filename)
	}

	embeddings, err := p.embedder.Embed(ctx, credential, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	for i, chunk := range chunks {
		if err := p.sink.InsertChunk(ctx, documentID, chunk, embeddings[i]); err != nil {
			return fmt.Errorf("storing chunk %d: %w", i, err)
		}
	}
	return nil
}

// Delete removes a document from the registry and purges its chunks.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if _, ok := p.registry.Get(documentID); !ok {
		return ErrDocumentNotFound
	}
	if err := p.sink.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("purging chunks for %s: %w", documentID, err)
	}
	p.registry.Delete(documentID)
	return nil
}
