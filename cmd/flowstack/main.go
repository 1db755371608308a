package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/flowstack/internal/app"
)

// main is the entrypoint for the flowstack service.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.New(ctx, os.Stdout, cfg)
	if err != nil {
		return fmt.Errorf("starting application: %w", err)
	}

	return a.Run(ctx)
}
