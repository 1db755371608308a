package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serpHandler(t *testing.T, count int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("api_key"))

		results := make([]map[string]string, count)
		for i := range results {
			results[i] = map[string]string{
				"title":   fmt.Sprintf("Result %d", i),
				"snippet": fmt.Sprintf("Snippet %d", i),
				"link":    fmt.Sprintf("https://example.com/%d", i),
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"organic_results": results})
	}
}

func TestSearchSerpAPI(t *testing.T) {
	srv := httptest.NewServer(serpHandler(t, 3))
	defer srv.Close()

	s := NewWebSearcher("serp-key", "", WithSerpAPIBaseURL(srv.URL))
	results, err := s.Search(context.Background(), "capital of France")
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "Result 0", results[0].Title)
	assert.Equal(t, "https://example.com/0", results[0].URL)
}

func TestSearchCapsResults(t *testing.T) {
	srv := httptest.NewServer(serpHandler(t, 12))
	defer srv.Close()

	s := NewWebSearcher("serp-key", "", WithSerpAPIBaseURL(srv.URL))
	results, err := s.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestSearchFallsBackToBrave(t *testing.T) {
	serp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer serp.Close()

	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/res/v1/web/search", r.URL.Path)
		require.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]string{
					{"title": "France", "description": "Paris is the capital.", "url": "https://brave.example/france"},
				},
			},
		})
	}))
	defer brave.Close()

	s := NewWebSearcher("serp-key", "brave-key",
		WithSerpAPIBaseURL(serp.URL),
		WithBraveBaseURL(brave.URL),
	)
	results, err := s.Search(context.Background(), "capital of France")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "France", results[0].Title)
	assert.Equal(t, "Paris is the capital.", results[0].Snippet)
}

func TestSearchNoProvider(t *testing.T) {
	s := NewWebSearcher("", "")
	_, err := s.Search(context.Background(), "anything")

	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
}

func TestSearchBothProvidersFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer failing.Close()

	s := NewWebSearcher("serp-key", "brave-key",
		WithSerpAPIBaseURL(failing.URL),
		WithBraveBaseURL(failing.URL),
	)
	_, err := s.Search(context.Background(), "anything")

	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Contains(t, err.Error(), "502")
}

func TestSnippetContext(t *testing.T) {
	got := SnippetContext([]SearchResult{
		{Title: "A", Snippet: "first"},
		{Title: "B", Snippet: "second"},
	})
	assert.Equal(t, "A: first\n\nB: second\n\n", got)
}
