package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ListenAddr string

	LogFormat string
	LogLevel  string

	WorkerCount int
	RunBudget   time.Duration

	// PostgresDSN enables the pgvector-backed knowledge base. Empty disables
	// document ingestion; the document routes then answer 503.
	PostgresDSN         string
	EmbeddingDimensions int
	OllamaURL           string

	// RedisAddr switches execution tracking from the in-memory store to
	// redis. Empty keeps the in-memory store.
	RedisAddr    string
	ExecutionTTL time.Duration

	SerpAPIKey  string
	BraveAPIKey string
}

// NewConfig validates a Config and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("WorkerCount must not be negative, got %d", cfg.WorkerCount)
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 4
	}
	if cfg.RunBudget < 0 {
		return nil, errors.New("RunBudget must not be negative")
	}
	if cfg.RunBudget == 0 {
		cfg.RunBudget = 5 * time.Minute
	}
	if cfg.PostgresDSN != "" && cfg.EmbeddingDimensions <= 0 {
		return nil, errors.New("EmbeddingDimensions is required when PostgresDSN is set")
	}
	if cfg.ExecutionTTL == 0 {
		cfg.ExecutionTTL = 24 * time.Hour
	}
	return &cfg, nil
}

// ConfigFromEnv builds a Config from the process environment, loading a
// local .env file first when one exists.
func ConfigFromEnv() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:  os.Getenv("FLOWSTACK_LISTEN_ADDR"),
		LogFormat:   os.Getenv("FLOWSTACK_LOG_FORMAT"),
		LogLevel:    os.Getenv("FLOWSTACK_LOG_LEVEL"),
		PostgresDSN: os.Getenv("FLOWSTACK_POSTGRES_DSN"),
		OllamaURL:   os.Getenv("FLOWSTACK_OLLAMA_URL"),
		RedisAddr:   os.Getenv("FLOWSTACK_REDIS_ADDR"),
		SerpAPIKey:  os.Getenv("SERPAPI_API_KEY"),
		BraveAPIKey: os.Getenv("BRAVE_API_KEY"),
	}

	var err error
	if cfg.WorkerCount, err = intEnv("FLOWSTACK_WORKER_COUNT"); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimensions, err = intEnv("FLOWSTACK_EMBEDDING_DIMENSIONS"); err != nil {
		return nil, err
	}
	if cfg.RunBudget, err = durationEnv("FLOWSTACK_RUN_BUDGET"); err != nil {
		return nil, err
	}
	if cfg.ExecutionTTL, err = durationEnv("FLOWSTACK_EXECUTION_TTL"); err != nil {
		return nil, err
	}
	return NewConfig(cfg)
}

func intEnv(key string) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func durationEnv(key string) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, raw)
	}
	return d, nil
}
