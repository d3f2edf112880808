package logger

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFunctionsDoNotPanic(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		Info("test info", "component", "test")
		InfoContext(ctx, "test info", "key", "value")
		Warn("test warn")
		WarnContext(ctx, "test warn")
		Error("test error", "error", "sample")
		Debug("test debug", "debug", true)
	})
}

func TestGetReturnsSameLogger(t *testing.T) {
	l1 := Get()
	l2 := Get()
	require.NotNil(t, l1)
	assert.Same(t, l1, l2)
	assert.NotNil(t, With("key", "value"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Output: &buf, JSON: true})
	l.Debug("hello", "entry", "a.safetensors")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"entry":"a.safetensors"`)
}

func TestOpenFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write([]byte("line\n"))
	assert.NoError(t, err)
}
