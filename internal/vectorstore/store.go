// Package vectorstore persists document chunk embeddings in Postgres and
// answers nearest-neighbour queries through the pgvector extension.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/vk/flowstack/internal/ctxlog"
)

// Chunk is one stored fragment of an ingested document.
type Chunk struct {
	DocumentID string
	Content    string
	Distance   float64
}

// Store wraps the chunk table. All methods are safe for concurrent use; the
// underlying *sql.DB pools connections.
type Store struct {
	db         *sql.DB
	dimensions int
}

// Open connects to Postgres and prepares the chunk schema.
func Open(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{db: db, dimensions: dimensions}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Vector store ready.", "dimensions", dimensions)
	return s, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB, dimensions int) *Store {
	return &Store{db: db, dimensions: dimensions}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS document_chunks_document_id_idx ON document_chunks (document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("preparing chunk schema: %w", err)
		}
	}
	return nil
}

// InsertChunk stores one embedded chunk for a document.
func (s *Store) InsertChunk(ctx context.Context, documentID, content string, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return fmt.Errorf("embedding dim %d does not match store dim %d", len(embedding), s.dimensions)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_chunks (document_id, content, embedding) VALUES ($1, $2, $3)`,
		documentID, content, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("inserting chunk for document %s: %w", documentID, err)
	}
	return nil
}

// QuerySimilar returns the topK chunks nearest to the query embedding,
// restricted to the given document ids.
func (s *Store) QuerySimilar(ctx context.Context, queryEmb []float32, documentIDs []string, topK int) ([]Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, content, embedding <-> $1 AS distance
		 FROM document_chunks
		 WHERE document_id = ANY($2)
		 ORDER BY embedding <-> $1
		 LIMIT $3`,
		pgvector.NewVector(queryEmb), pq.Array(documentIDs), topK)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.DocumentID, &c.Content, &c.Distance); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteDocument removes every chunk belonging to a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks for document %s: %w", documentID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
