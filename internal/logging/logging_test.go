package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerCarriesFieldsAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})
	ctx := ContextWithRequestID(context.Background(), "req-1")

	log.With(String("component", "planner")).Info(ctx, "allocation finished",
		Int("allocated", 3), Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "allocation finished", line["msg"])
	assert.Equal(t, "planner", line["component"])
	assert.Equal(t, float64(3), line["allocated"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "req-1", line["request_id"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())
	log.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	require.NotEmpty(t, id)
	again, same := EnsureRequestID(ctx)
	assert.Equal(t, id, same)
	assert.Equal(t, id, RequestIDFromContext(again))
}
