package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
)

// OllamaEmbedder produces embeddings through a local Ollama instance. The
// credential parameter is accepted for interface parity but unused; Ollama
// is unauthenticated.
type OllamaEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

// EmbedderOption customizes an OllamaEmbedder.
type EmbedderOption func(*OllamaEmbedder)

// WithOllamaBaseURL points the embedder at a different Ollama host.
func WithOllamaBaseURL(u string) EmbedderOption {
	return func(e *OllamaEmbedder) { e.baseURL = strings.TrimRight(u, "/") }
}

// WithOllamaModel selects the embedding model.
func WithOllamaModel(model string) EmbedderOption {
	return func(e *OllamaEmbedder) { e.model = model }
}

// WithEmbedHTTPClient swaps the underlying HTTP client.
func WithEmbedHTTPClient(c *http.Client) EmbedderOption {
	return func(e *OllamaEmbedder) { e.client = c }
}

// NewOllamaEmbedder builds the production embedding adapter. dimensions is
// the vector width the configured model produces; mismatched responses are
// rejected rather than written into the vector store.
func NewOllamaEmbedder(dimensions int, opts ...EmbedderOption) *OllamaEmbedder {
	e := &OllamaEmbedder{
		client:     &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultOllamaBaseURL,
		model:      defaultOllamaModel,
		dimensions: dimensions,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Embedder. Inputs are embedded one at a time; the Ollama
// embeddings endpoint takes a single prompt per call.
func (e *OllamaEmbedder) Embed(ctx context.Context, _ string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs to embed")
	}

	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec, err := e.embedOne(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("embedding input %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: input})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("ollama", resp)
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}
	if len(parsed.Embedding) != e.dimensions {
		return nil, fmt.Errorf("expected embedding dim %d, got %d", e.dimensions, len(parsed.Embedding))
	}
	return parsed.Embedding, nil
}
