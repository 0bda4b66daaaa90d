package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("matcher"))

	log.Debug("hidden")
	log.Info("matched", UserID("u1"), Int("count", 3), Err(errors.New("x")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "matched", entry.Message)
	assert.Equal(t, "matcher", entry.Fields["component"])
	assert.Equal(t, "u1", entry.Fields["user_id"])
	assert.Equal(t, float64(3), entry.Fields["count"])
	assert.Equal(t, "x", entry.Fields["error"])
}

func TestLogger_TextSortsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: FormatText})

	log.Warn("slow request", String("path", "/api"), Int("status", 200))

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "slow request path=/api status=200")
}

func TestLogger_WithDoesNotLeakFields(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Level: LevelInfo})
	_ = parent.With(String("a", "1"))

	parent.Info("plain")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Empty(t, entry.Fields)
}

func TestContextRoundTrip(t *testing.T) {
	log := Discard().WithRequestID("req-1")
	ctx := WithContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
