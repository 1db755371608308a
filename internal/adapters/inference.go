package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vk/flowstack/internal/ctxlog"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// inferenceMaxTokens caps completion length the same way the editor's
	// model picker advertises it.
	inferenceMaxTokens = 1500
)

// HTTPInferencer routes inference calls to a provider chosen by model id
// prefix: "gpt*" goes to an OpenAI-compatible chat endpoint, "gemini*" to the
// Gemini REST API. Anything else is an InferenceError before any network I/O.
type HTTPInferencer struct {
	client        *http.Client
	openAIBaseURL string
	geminiBaseURL string
}

// InferencerOption customizes an HTTPInferencer.
type InferencerOption func(*HTTPInferencer)

// WithOpenAIBaseURL points the OpenAI-compatible backend at a different host.
func WithOpenAIBaseURL(url string) InferencerOption {
	return func(i *HTTPInferencer) { i.openAIBaseURL = strings.TrimRight(url, "/") }
}

// WithGeminiBaseURL points the Gemini backend at a different host.
func WithGeminiBaseURL(url string) InferencerOption {
	return func(i *HTTPInferencer) { i.geminiBaseURL = strings.TrimRight(url, "/") }
}

// WithInferenceHTTPClient swaps the underlying HTTP client.
func WithInferenceHTTPClient(c *http.Client) InferencerOption {
	return func(i *HTTPInferencer) { i.client = c }
}

// NewHTTPInferencer builds the production inference adapter.
func NewHTTPInferencer(opts ...InferencerOption) *HTTPInferencer {
	inf := &HTTPInferencer{
		client:        &http.Client{Timeout: 120 * time.Second},
		openAIBaseURL: defaultOpenAIBaseURL,
		geminiBaseURL: defaultGeminiBaseURL,
	}
	for _, opt := range opts {
		opt(inf)
	}
	return inf
}

// Infer implements Inferencer.
func (i *HTTPInferencer) Infer(ctx context.Context, req InferenceRequest) (ResponseBundle, error) {
	if req.Credential == "" {
		return ResponseBundle{}, &InferenceError{Err: fmt.Errorf("model %q: credential is required", req.ModelID)}
	}

	var (
		text string
		err  error
	)
	switch {
	case strings.HasPrefix(req.ModelID, "gpt"):
		text, err = i.inferOpenAI(ctx, req)
	case strings.HasPrefix(req.ModelID, "gemini"):
		text, err = i.inferGemini(ctx, req)
	default:
		err = fmt.Errorf("unsupported model %q", req.ModelID)
	}
	if err != nil {
		return ResponseBundle{}, &InferenceError{Err: err}
	}
	return ResponseBundle{Text: text, Sources: []string{}}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (i *HTTPInferencer) inferOpenAI(ctx context.Context, req InferenceRequest) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: req.ModelID,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Query},
		},
		MaxTokens:   inferenceMaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.openAIBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("openai", resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (i *HTTPInferencer) inferGemini(ctx context.Context, req InferenceRequest) (string, error) {
	// Gemini has no separate system role on this endpoint; fold the system
	// prompt into the user content.
	full := fmt.Sprintf("%s\n\nUser Query: %s", req.SystemPrompt, req.Query)
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: full}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", i.geminiBaseURL, req.ModelID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-goog-api-key", req.Credential)

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("gemini", resp)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		ctxlog.FromContext(ctx).Warn("Gemini returned an empty candidate list.", "model", req.ModelID)
		return "", fmt.Errorf("gemini response contained no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// apiError reads a bounded slice of the error body so provider failures are
// diagnosable without logging megabytes.
func apiError(provider string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s API status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(snippet)))
}
