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

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("ledger"))

	log.Debug("hidden")
	log.Info("enrolled", StudentID("STU1"), SeatCount(4), Err(errors.New("late")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "enrolled", entry.Message)
	assert.Equal(t, "ledger", entry.Fields["component"])
	assert.Equal(t, "STU1", entry.Fields["student_id"])
	assert.Equal(t, float64(4), entry.Fields["current_enrollment"])
	assert.Equal(t, "late", entry.Fields["error"])
	assert.Empty(t, entry.Caller)
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: FormatText})

	log.Warn("seat drift", BatchID("B1"), Int("stored", 3))

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, " WARN seat drift batch_id=B1 stored=3")
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Output: &buf})
	_ = base.With(String("request_id", "r1"))

	base.Info("plain")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestContextLogger(t *testing.T) {
	log := Discard()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
