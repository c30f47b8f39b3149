package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/services"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("hello", String("run_id", "r1"))
	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "yaml"})
	assert.Error(t, err)
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Output: &buf})
	require.NoError(t, err)

	ctx := services.WithRunID(context.Background(), "r42")
	ctx = services.WithStage(ctx, "score")
	ctx = services.WithQueue(ctx, "campaign-stages")

	WithContext(ctx, logger).Info("scored")
	out := buf.String()
	assert.Contains(t, out, `"run_id":"r42"`)
	assert.Contains(t, out, `"stage":"score"`)
	assert.Contains(t, out, `"queue":"campaign-stages"`)
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "router")
	// Must not panic and must be usable.
	logger.Info("noop")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
