package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	require.NotNil(t, adapter)
	assert.NotNil(t, adapter.logger)
}

func TestNewSlogAdapter_WithLogger(t *testing.T) {
	logger := slog.Default()
	adapter := NewSlogAdapter(logger)
	assert.Same(t, logger, adapter.Logger())
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(NewLogger(FormatText, slog.LevelDebug, &buf))

	adapter.Debug("debug message", "key", "value")
	adapter.Info("info message")
	adapter.Warn("warn message")
	adapter.Error("error message")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=ERROR")
}

func TestSlogAdapter_ComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(WithComponent(NewLogger(FormatText, slog.LevelInfo, &buf), "identity"))

	adapter.Info("token acquired")

	assert.Contains(t, buf.String(), "component=identity")
}

func TestDefaultLogger(t *testing.T) {
	adapter := DefaultLogger()
	require.NotNil(t, adapter)
	assert.NotNil(t, adapter.logger)
}

func TestDiscardLogger(t *testing.T) {
	adapter := DiscardLogger()
	adapter.Error("dropped")
	assert.False(t, adapter.Logger().Enabled(t.Context(), slog.LevelError))
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = (*SlogAdapter)(nil)
	var _ Logger = slog.Default()
}
