package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompts = append(prompts, req.Prompt)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(3, WithOllamaBaseURL(srv.URL))
	vecs, err := e.Embed(context.Background(), "", []string{"first chunk", "second chunk"})
	require.NoError(t, err)

	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
	assert.Equal(t, []string{"first chunk", "second chunk"}, prompts)
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(768, WithOllamaBaseURL(srv.URL))
	_, err := e.Embed(context.Background(), "", []string{"chunk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dim 768")
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder(3)
	_, err := e.Embed(context.Background(), "", nil)
	require.Error(t, err)
}

func TestEmbedSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(3, WithOllamaBaseURL(srv.URL))
	_, err := e.Embed(context.Background(), "", []string{"chunk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
