package app

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowstack/internal/testutil"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf testutil.SafeBuffer
	logger := newLogger("info", "json", &buf)
	logger.Info("hello", "key", "value")

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "value", record["key"])
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	var buf testutil.SafeBuffer
	logger := newLogger("warn", "text", &buf)

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}

func TestNewLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf testutil.SafeBuffer
	logger := newLogger("chatty", "text", &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNewLoggerConcurrentWrites(t *testing.T) {
	var buf testutil.SafeBuffer
	logger := newLogger("info", "text", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("concurrent write")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, strings.Count(buf.String(), "concurrent write"))
}
