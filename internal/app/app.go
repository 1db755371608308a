// Package app assembles the whole service from configuration: logger,
// execution tracker, adapters, engine, ingestion pipeline, and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vk/flowstack/internal/adapters"
	"github.com/vk/flowstack/internal/ctxlog"
	"github.com/vk/flowstack/internal/engine"
	"github.com/vk/flowstack/internal/ingest"
	"github.com/vk/flowstack/internal/server"
	"github.com/vk/flowstack/internal/tracker"
	"github.com/vk/flowstack/internal/vectorstore"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 10 * time.Second

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	config  *Config
	logger  *slog.Logger
	server  *server.Server
	vectors *vectorstore.Store
	closers []func() error
}

// New is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger.
func New(ctx context.Context, outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	a := &App{config: cfg, logger: logger}

	store, err := a.buildTrackerStore(ctx)
	if err != nil {
		return nil, err
	}
	tr := tracker.New(store)

	pipeline, documents, retriever, err := a.buildIngestion(ctx)
	if err != nil {
		return nil, err
	}

	var searcher adapters.Searcher
	if cfg.SerpAPIKey != "" || cfg.BraveAPIKey != "" {
		searcher = adapters.NewWebSearcher(cfg.SerpAPIKey, cfg.BraveAPIKey)
	} else {
		logger.Warn("No web search provider configured; search-enabled nodes will degrade.")
	}

	eng := engine.New(tr, engine.Adapters{
		Retriever:  retriever,
		Searcher:   searcher,
		Inferencer: adapters.NewHTTPInferencer(),
	},
		engine.WithWorkerCount(cfg.WorkerCount),
		engine.WithRunBudget(cfg.RunBudget),
	)

	a.server = server.New(logger, server.NewMemoryWorkflowStore(), eng, tr, pipeline, documents)
	return a, nil
}

func (a *App) buildTrackerStore(ctx context.Context) (tracker.Store, error) {
	if a.config.RedisAddr == "" {
		a.logger.Debug("Tracking executions in memory.")
		return tracker.NewMemoryStore(), nil
	}
	store, err := tracker.NewRedisStore(ctx, a.config.RedisAddr, a.config.ExecutionTTL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", a.config.RedisAddr, err)
	}
	a.closers = append(a.closers, store.Close)
	a.logger.Info("Tracking executions in redis.", "addr", a.config.RedisAddr)
	return store, nil
}

// buildIngestion wires the embedder, vector store, retriever, and pipeline.
// Without a postgres DSN the knowledge-base features stay disabled and all
// three return nil.
func (a *App) buildIngestion(ctx context.Context) (*ingest.Pipeline, *ingest.Registry, adapters.Retriever, error) {
	if a.config.PostgresDSN == "" {
		a.logger.Warn("No postgres DSN configured; document ingestion is disabled.")
		return nil, nil, nil, nil
	}

	vectors, err := vectorstore.Open(ctx, a.config.PostgresDSN, a.config.EmbeddingDimensions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening vector store: %w", err)
	}
	a.vectors = vectors
	a.closers = append(a.closers, vectors.Close)

	var embedOpts []adapters.EmbedderOption
	if a.config.OllamaURL != "" {
		embedOpts = append(embedOpts, adapters.WithOllamaBaseURL(a.config.OllamaURL))
	}
	embedder := adapters.NewOllamaEmbedder(a.config.EmbeddingDimensions, embedOpts...)

	documents := ingest.NewRegistry()
	pipeline := ingest.New(embedder, vectors, documents)
	retriever := adapters.NewVectorRetriever(embedder, vectors)
	a.logger.Info("Document ingestion enabled.", "dimensions", a.config.EmbeddingDimensions)
	return pipeline, documents, retriever, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    a.config.ListenAddr,
		Handler: a.server.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctxlog.WithLogger(context.Background(), a.logger)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening.", "addr", a.config.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown requested; draining connections.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
	}

	return a.Close()
}

// Close releases backing connections.
func (a *App) Close() error {
	var first error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
