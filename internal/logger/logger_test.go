package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = WithRunID(ctx, "run-1")
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
}

func TestFromContextAttachesRunID(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, slog.LevelInfo, FormatJSON)

	FromContext(WithRunID(context.Background(), "run-2"), base).Info("zone done", "zone", "orlu")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run-2", line["run_id"])
	assert.Equal(t, "orlu", line["zone"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelWarn, FormatText)

	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
