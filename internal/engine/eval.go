package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/flowstack/internal/adapters"
	"github.com/vk/flowstack/internal/ctxlog"
	"github.com/vk/flowstack/internal/tracker"
	"github.com/vk/flowstack/internal/workflow"
)

const defaultSystemPrompt = "You are a helpful AI assistant."

// evalNode produces the node's outputs from its inbound edges. The returned
// error is the node's failure; outputs are only consulted once the node is
// marked done, so partial writes on the error path are harmless.
func (e *Engine) evalNode(ctx context.Context, run *run, en *execNode, executionID, queryText string) error {
	switch cfg := en.node.Config.(type) {
	case workflow.UserQueryConfig:
		return e.evalUserQuery(ctx, en, cfg, executionID, queryText)
	case workflow.KnowledgeBaseConfig:
		return e.evalKnowledgeBase(ctx, run, en, cfg, executionID)
	case workflow.LLMEngineConfig:
		return e.evalLLMEngine(ctx, run, en, cfg, executionID)
	case workflow.OutputConfig:
		return e.evalOutput(ctx, run, en, executionID)
	default:
		return fmt.Errorf("no evaluator for node kind %q", en.node.Kind)
	}
}

// queryInput resolves the QueryText value wired into the node's query-input
// handle.
func (r *run) queryInput(en *execNode) (string, error) {
	edge, ok := en.inbound["query-input"]
	if !ok {
		return "", fmt.Errorf("node %s has no query-input edge", en.node.ID)
	}
	v, ok := r.value(edge.SourceNodeID, edge.SourceHandle)
	if !ok {
		return "", fmt.Errorf("upstream value for %s is missing", edge)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("upstream value for %s is not query text", edge)
	}
	return s, nil
}

// evalUserQuery seeds the run with the user's query. A request-time query
// overrides the one stored in the node's configuration.
func (e *Engine) evalUserQuery(ctx context.Context, en *execNode, cfg workflow.UserQueryConfig, executionID, queryText string) error {
	query := strings.TrimSpace(queryText)
	if query == "" {
		query = strings.TrimSpace(cfg.QueryText)
	}
	if query == "" {
		return errors.New("no query text provided")
	}

	en.outputs["query-output"] = query
	return e.tracker.Update(ctx, executionID, func(x *tracker.Execution) {
		x.ChatHistory = append(x.ChatHistory, tracker.ChatMessage{
			Role:    "user",
			Content: query,
			Time:    time.Now().UTC(),
		})
	})
}

// evalKnowledgeBase retrieves similarity-ranked context for the query over
// the node's ready documents. Documents still ingesting, or stuck in an
// error state, are skipped with a warning rather than failing the run.
func (e *Engine) evalKnowledgeBase(ctx context.Context, run *run, en *execNode, cfg workflow.KnowledgeBaseConfig, executionID string) error {
	logger := ctxlog.FromContext(ctx)

	query, err := run.queryInput(en)
	if err != nil {
		return err
	}

	ready := make([]workflow.DocumentRef, 0, len(cfg.DocumentRefs))
	for _, doc := range cfg.DocumentRefs {
		if doc.IngestionStatus != workflow.IngestionReady {
			logger.Warn("Skipping document that is not ready.", "documentID", doc.ID, "status", doc.IngestionStatus)
			e.log(ctx, executionID, "warning", en.node.ID,
				fmt.Sprintf("skipping document %s (status %s)", doc.DisplayName, doc.IngestionStatus))
			continue
		}
		ready = append(ready, doc)
	}

	if len(ready) == 0 {
		e.log(ctx, executionID, "warning", en.node.ID, "no ready documents; passing empty context")
		en.outputs["context-output"] = adapters.ContextBundle{}
		return nil
	}
	if e.adapters.Retriever == nil {
		return errors.New("no retriever configured")
	}

	bundle, err := e.adapters.Retriever.Retrieve(ctx, query, ready, cfg.EmbeddingCredential, retrievalTopK)
	if err != nil {
		return err
	}
	e.log(ctx, executionID, "info", en.node.ID,
		fmt.Sprintf("retrieved %d context chunks from %d documents", len(bundle.Chunks), len(ready)))
	en.outputs["context-output"] = bundle
	return nil
}

// evalLLMEngine assembles the prompt from the query, the optional document
// context, and optional web search results, then calls the model. A failed
// web search degrades to a context-free prompt; a failed inference fails the
// node.
func (e *Engine) evalLLMEngine(ctx context.Context, run *run, en *execNode, cfg workflow.LLMEngineConfig, executionID string) error {
	logger := ctxlog.FromContext(ctx)

	query, err := run.queryInput(en)
	if err != nil {
		return err
	}

	var contextBundle adapters.ContextBundle
	if edge, ok := en.inbound["context-input"]; ok {
		v, found := run.value(edge.SourceNodeID, edge.SourceHandle)
		if !found {
			return fmt.Errorf("upstream value for %s is missing", edge)
		}
		bundle, isBundle := v.(adapters.ContextBundle)
		if !isBundle {
			return fmt.Errorf("upstream value for %s is not a context bundle", edge)
		}
		contextBundle = bundle
	}

	var sources []string
	var webContext string
	if cfg.UseWebSearch {
		if e.adapters.Searcher == nil {
			logger.Warn("Web search requested but no searcher configured.")
			e.log(ctx, executionID, "warning", en.node.ID, "web search unavailable; continuing without it")
		} else if results, searchErr := e.adapters.Searcher.Search(ctx, query); searchErr != nil {
			logger.Warn("Web search failed; continuing without it.", "error", searchErr)
			e.log(ctx, executionID, "warning", en.node.ID, fmt.Sprintf("web search failed: %v", searchErr))
		} else {
			webContext = adapters.SnippetContext(results)
			for _, r := range results {
				if r.URL != "" {
					sources = append(sources, r.URL)
				}
			}
			e.log(ctx, executionID, "info", en.node.ID, fmt.Sprintf("web search returned %d results", len(results)))
		}
	}

	if e.adapters.Inferencer == nil {
		return errors.New("no inference backend configured")
	}

	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	systemPrompt = augmentPrompt(systemPrompt, contextBundle.Text, webContext)

	resp, err := e.adapters.Inferencer.Infer(ctx, adapters.InferenceRequest{
		ModelID:      cfg.ModelID,
		SystemPrompt: systemPrompt,
		Query:        query,
		Temperature:  cfg.Temperature,
		Credential:   cfg.Credential,
	})
	if err != nil {
		return err
	}

	// Document citations first, then web sources, then anything the
	// provider itself reported.
	var merged []string
	for _, chunk := range contextBundle.Chunks {
		merged = appendUnique(merged, chunk.DocumentID)
	}
	for _, s := range sources {
		merged = appendUnique(merged, s)
	}
	for _, s := range resp.Sources {
		merged = appendUnique(merged, s)
	}
	resp.Sources = merged

	en.outputs["response-output"] = resp
	return nil
}

// augmentPrompt folds document and web context blocks onto the system prompt.
func augmentPrompt(systemPrompt, docContext, webContext string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if docContext != "" {
		b.WriteString("\n\nUse the following document context to answer:\n")
		b.WriteString(docContext)
	}
	if webContext != "" {
		b.WriteString("\n\nWeb search results:\n")
		b.WriteString(webContext)
	}
	return b.String()
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}

// evalOutput publishes the terminal response on the execution record and
// mirrors it into the chat history.
func (e *Engine) evalOutput(ctx context.Context, run *run, en *execNode, executionID string) error {
	edge, ok := en.inbound["response-input"]
	if !ok {
		return fmt.Errorf("node %s has no response-input edge", en.node.ID)
	}
	v, found := run.value(edge.SourceNodeID, edge.SourceHandle)
	if !found {
		return fmt.Errorf("upstream value for %s is missing", edge)
	}
	resp, isResp := v.(adapters.ResponseBundle)
	if !isResp {
		return fmt.Errorf("upstream value for %s is not a response bundle", edge)
	}

	return e.tracker.Update(ctx, executionID, func(x *tracker.Execution) {
		if x.OutputData == nil {
			x.OutputData = make(map[string]any)
		}
		x.OutputData["response"] = resp.Text
		x.OutputData["sources"] = resp.Sources
		x.ChatHistory = append(x.ChatHistory, tracker.ChatMessage{
			Role:    "assistant",
			Content: resp.Text,
			Time:    time.Now().UTC(),
		})
	})
}
