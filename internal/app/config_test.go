package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 5*time.Minute, cfg.RunBudget)
	assert.Equal(t, 24*time.Hour, cfg.ExecutionTTL)
}

func TestNewConfigRejectsNegativeWorkers(t *testing.T) {
	_, err := NewConfig(Config{WorkerCount: -1})
	require.Error(t, err)
}

func TestNewConfigRequiresDimensionsWithPostgres(t *testing.T) {
	_, err := NewConfig(Config{PostgresDSN: "postgres://localhost/flowstack"})
	require.Error(t, err)

	cfg, err := NewConfig(Config{PostgresDSN: "postgres://localhost/flowstack", EmbeddingDimensions: 768})
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FLOWSTACK_LISTEN_ADDR", ":9999")
	t.Setenv("FLOWSTACK_WORKER_COUNT", "8")
	t.Setenv("FLOWSTACK_RUN_BUDGET", "90s")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 90*time.Second, cfg.RunBudget)
}

func TestConfigFromEnvRejectsBadInteger(t *testing.T) {
	t.Setenv("FLOWSTACK_WORKER_COUNT", "lots")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestConfigFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("FLOWSTACK_RUN_BUDGET", "soonish")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}
