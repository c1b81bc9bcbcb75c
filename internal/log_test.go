package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"error", LogLevelError, true},
		{" WARN ", LogLevelWarn, true},
		{"Debug", LogLevelDebug, true},
		{"trace", LogLevelTrace, true},
		{"", LogLevelInfo, false},
		{"loud", LogLevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLogger_LevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelInfo, &buf).With("reshaper")

	logger.Debug("hidden %d", 1)
	logger.Info("dropped %d subjects", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "dropped 3 subjects")
	assert.Contains(t, out, "component=reshaper")
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LogLevelTrace, &buf).Trace("trial %d done", 7)
	assert.Contains(t, buf.String(), "trial 7 done")

	buf.Reset()
	NewLogger(LogLevelDebug, &buf).Trace("trial %d done", 8)
	assert.Empty(t, buf.String())
}
