package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer func() {
		SetLevel(LevelInfo)
	}()

	Info("hidden", "k", 1)
	Warn("shown", "id", "abc_1")
	Error("failed", errors.New("boom"), "key", "calendar-events")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "id=abc_1")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "key=calendar-events")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestPairsDropsOddAndNonStringKeys(t *testing.T) {
	got := pairs([]any{"a", 1, 2, "x", "tail"})
	assert.Equal(t, []any{"a", 1}, got)
}
