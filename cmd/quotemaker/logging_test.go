package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestSlogToCharmLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, slogToCharmLevel(slog.Level(-12)))
	assert.Equal(t, log.DebugLevel, slogToCharmLevel(slog.LevelDebug))
	assert.Equal(t, log.InfoLevel, slogToCharmLevel(slog.LevelInfo))
	assert.Equal(t, log.WarnLevel, slogToCharmLevel(slog.LevelWarn))
	assert.Equal(t, log.ErrorLevel, slogToCharmLevel(slog.LevelError))
	assert.Equal(t, log.ErrorLevel, slogToCharmLevel(slog.Level(12)))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", slog.Int("attempt", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLogger_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := newLogger(LogConfig{Level: "info", Format: "pretty"}, &buf)
	defer closer.Close()

	logger.Info("Model trained", slog.String("model_name", "quotes"))
	assert.Contains(t, buf.String(), "Model trained")
	assert.Contains(t, buf.String(), "quotes")
}

func TestNewLogger_WritesFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "quotemaker.log")
	logger, closer := newLogger(LogConfig{Level: "info", Format: "pretty", File: file, MaxSizeMB: 1}, &buf)

	logger.Info("written twice")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "written twice")
	content, err := os.ReadFile(file)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(content), &entry))
	assert.Equal(t, "written twice", entry["msg"])
}

func TestNewLogger_RedactsAccessKey(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := newLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	defer closer.Close()

	config := DefaultConfig()
	config.Background.AccessKey = "super-secret-key"
	logger.Debug("Configuration loaded", slog.Any("config", *config))
	logger.With(slog.String("access_key", "another-secret")).Info("with attrs")

	out := buf.String()
	assert.Contains(t, out, "Configuration loaded")
	assert.Contains(t, out, "with attrs")
	assert.NotContains(t, out, "super-secret-key")
	assert.NotContains(t, out, "another-secret")
}

func TestMultiHandler_Enabled(t *testing.T) {
	debug := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	errOnly := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})

	assert.True(t, NewMultiHandler(debug, errOnly).Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, NewMultiHandler(errOnly, errOnly).Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_HandleRespectsLevels(t *testing.T) {
	var verbose, quiet bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With(slog.String("run_id", "abc")).WithGroup("req")

	logger.Debug("debug only", slog.Int("n", 1))
	logger.Warn("both")

	assert.Contains(t, verbose.String(), "debug only")
	assert.Contains(t, verbose.String(), `"run_id":"abc"`)
	assert.Contains(t, verbose.String(), `"req":{"n":1}`)
	assert.NotContains(t, quiet.String(), "debug only")
	assert.Contains(t, quiet.String(), "both")
}
