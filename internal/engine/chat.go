package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/vk/flowstack/internal/adapters"
	"github.com/vk/flowstack/internal/ctxlog"
)

// defaultChatTemperature matches the LLMEngine node's configured default.
const defaultChatTemperature = 0.7

// ChatRequest is a single model call outside any workflow: the caller
// supplies the query and model directly instead of wiring a graph.
type ChatRequest struct {
	Query        string
	ModelID      string
	Credential   string
	SystemPrompt string
	Context      string
	UseWebSearch bool
	Temperature  float64
}

// Chat runs one inference with the same prompt assembly and web-search
// degradation as an LLMEngine node. It touches no execution records.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (adapters.ResponseBundle, error) {
	if e.adapters.Inferencer == nil {
		return adapters.ResponseBundle{}, errors.New("no inference backend configured")
	}

	var sources []string
	var webContext string
	if req.UseWebSearch && e.adapters.Searcher != nil {
		results, err := e.adapters.Searcher.Search(ctx, req.Query)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("Web search failed; continuing without it.", "error", err)
		} else {
			webContext = adapters.SnippetContext(results)
			for _, r := range results {
				if r.URL != "" {
					sources = append(sources, r.URL)
				}
			}
		}
	}

	systemPrompt := strings.TrimSpace(req.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	systemPrompt = augmentPrompt(systemPrompt, req.Context, webContext)

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultChatTemperature
	}

	resp, err := e.adapters.Inferencer.Infer(ctx, adapters.InferenceRequest{
		ModelID:      req.ModelID,
		SystemPrompt: systemPrompt,
		Query:        req.Query,
		Temperature:  temperature,
		Credential:   req.Credential,
	})
	if err != nil {
		return adapters.ResponseBundle{}, err
	}

	var merged []string
	for _, s := range sources {
		merged = appendUnique(merged, s)
	}
	for _, s := range resp.Sources {
		merged = appendUnique(merged, s)
	}
	resp.Sources = merged
	return resp, nil
}
