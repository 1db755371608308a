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

func TestInferOpenAI(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Paris"}},
			},
		})
	}))
	defer srv.Close()

	inf := NewHTTPInferencer(WithOpenAIBaseURL(srv.URL))
	resp, err := inf.Infer(context.Background(), InferenceRequest{
		ModelID:      "gpt-4o-mini",
		SystemPrompt: "You are a helpful AI assistant.",
		Query:        "What is the capital of France?",
		Temperature:  0.3,
		Credential:   "sk-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris", resp.Text)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 1500, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestInferGemini(t *testing.T) {
	var got geminiRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		apiKey = r.Header.Get("X-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "Paris"}}}},
			},
		})
	}))
	defer srv.Close()

	inf := NewHTTPInferencer(WithGeminiBaseURL(srv.URL))
	resp, err := inf.Infer(context.Background(), InferenceRequest{
		ModelID:      "gemini-1.5-flash",
		SystemPrompt: "Answer briefly.",
		Query:        "What is the capital of France?",
		Credential:   "g-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris", resp.Text)
	assert.Equal(t, "g-test", apiKey)
	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, "Answer briefly.\n\nUser Query: What is the capital of France?", got.Contents[0].Parts[0].Text)
}

func TestInferUnsupportedModel(t *testing.T) {
	inf := NewHTTPInferencer()
	_, err := inf.Infer(context.Background(), InferenceRequest{ModelID: "claude-3", Credential: "x"})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Contains(t, err.Error(), "unsupported model")
}

func TestInferRequiresCredential(t *testing.T) {
	inf := NewHTTPInferencer()
	_, err := inf.Infer(context.Background(), InferenceRequest{ModelID: "gpt-4o-mini"})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
}

func TestInferSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	inf := NewHTTPInferencer(WithOpenAIBaseURL(srv.URL))
	_, err := inf.Infer(context.Background(), InferenceRequest{ModelID: "gpt-4o-mini", Credential: "x"})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Contains(t, err.Error(), "429")
}

func TestInferRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	inf := NewHTTPInferencer(WithOpenAIBaseURL(srv.URL))
	_, err := inf.Infer(context.Background(), InferenceRequest{ModelID: "gpt-4o-mini", Credential: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
