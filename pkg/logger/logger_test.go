package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Format: FormatJSON})

	log.Info("session submitted",
		UserID("u-1"),
		GameID("game-01-cardmatch"),
		Coins(28),
		Bool("replay", false),
		Err(errors.New("boom")),
	)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "session submitted", entry["message"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "game-01-cardmatch", entry["game_id"])
	assert.EqualValues(t, 28, entry["coins"])
	assert.Equal(t, false, entry["replay"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn, Format: FormatJSON})

	log.Info("ignored")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Equal(t, "kept", decodeLine(t, &buf)["message"])
}

func TestLogger_WithAddsPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf, Level: LevelDebug, Format: FormatJSON})
	child := base.With(Component("saga")).WithRequestID("req-9")

	child.Debug("step done", Step("stars"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "saga", entry["component"])
	assert.Equal(t, "req-9", entry[RequestIDKey])
	assert.Equal(t, "stars", entry["step"])
}

func TestContextRoundTrip(t *testing.T) {
	log := Nop()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
