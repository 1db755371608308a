package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vk/flowstack/internal/ctxlog"
)

const (
	defaultSerpAPIBaseURL = "https://serpapi.com"
	defaultBraveBaseURL   = "https://api.search.brave.com"

	searchResultLimit = 5
)

// WebSearcher queries SerpAPI first and falls back to Brave when SerpAPI is
// unconfigured or fails. With neither key configured every call is a
// SearchError, which callers degrade from rather than failing a run.
type WebSearcher struct {
	client         *http.Client
	serpAPIKey     string
	braveAPIKey    string
	serpAPIBaseURL string
	braveBaseURL   string
}

// SearcherOption customizes a WebSearcher.
type SearcherOption func(*WebSearcher)

// WithSerpAPIBaseURL points the SerpAPI backend at a different host.
func WithSerpAPIBaseURL(u string) SearcherOption {
	return func(s *WebSearcher) { s.serpAPIBaseURL = strings.TrimRight(u, "/") }
}

// WithBraveBaseURL points the Brave backend at a different host.
func WithBraveBaseURL(u string) SearcherOption {
	return func(s *WebSearcher) { s.braveBaseURL = strings.TrimRight(u, "/") }
}

// WithSearchHTTPClient swaps the underlying HTTP client.
func WithSearchHTTPClient(c *http.Client) SearcherOption {
	return func(s *WebSearcher) { s.client = c }
}

// NewWebSearcher builds the production web search adapter.
func NewWebSearcher(serpAPIKey, braveAPIKey string, opts ...SearcherOption) *WebSearcher {
	s := &WebSearcher{
		client:         &http.Client{Timeout: 30 * time.Second},
		serpAPIKey:     serpAPIKey,
		braveAPIKey:    braveAPIKey,
		serpAPIBaseURL: defaultSerpAPIBaseURL,
		braveBaseURL:   defaultBraveBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search implements Searcher.
func (s *WebSearcher) Search(ctx context.Context, queryText string) ([]SearchResult, error) {
	logger := ctxlog.FromContext(ctx)

	if s.serpAPIKey != "" {
		results, err := s.searchSerpAPI(ctx, queryText)
		if err == nil {
			return results, nil
		}
		logger.Warn("SerpAPI search failed, trying Brave fallback.", "error", err)
	}

	if s.braveAPIKey != "" {
		results, err := s.searchBrave(ctx, queryText)
		if err == nil {
			return results, nil
		}
		return nil, &SearchError{Err: err}
	}

	return nil, &SearchError{Err: fmt.Errorf("no search provider configured")}
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

func (s *WebSearcher) searchSerpAPI(ctx context.Context, queryText string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", queryText)
	q.Set("api_key", s.serpAPIKey)
	q.Set("engine", "google")
	q.Set("num", fmt.Sprint(searchResultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serpAPIBaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling serpapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("serpapi", resp)
	}

	var parsed serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serpapi response: %w", err)
	}

	results := make([]SearchResult, 0, searchResultLimit)
	for _, r := range parsed.OrganicResults {
		if len(results) == searchResultLimit {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

func (s *WebSearcher) searchBrave(ctx context.Context, queryText string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", queryText)
	q.Set("count", fmt.Sprint(searchResultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.braveBaseURL+"/res/v1/web/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.braveAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("brave", resp)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding brave response: %w", err)
	}

	results := make([]SearchResult, 0, searchResultLimit)
	for _, r := range parsed.Web.Results {
		if len(results) == searchResultLimit {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}

// SnippetContext folds search results into prompt context lines.
func SnippetContext(results []SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s: %s\n\n", r.Title, r.Snippet)
	}
	return b.String()
}
