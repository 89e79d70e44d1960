package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, Level(false, false))
	assert.Equal(t, slog.LevelInfo, Level(true, false))
	assert.Equal(t, slog.LevelDebug, Level(false, true))
	assert.Equal(t, slog.LevelDebug, Level(true, true))
}

func TestNewStreamRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, closer := New(Config{Output: &buf})
	defer func() { _ = closer.Close() }()

	l.Info("hidden")
	l.Warn("shown", "pid", 42)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "pid=42")
	assert.NotContains(t, out, "\033[", "no colors when not writing to a terminal")
}

func TestNewFileUsesLumberjack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "daemon.log")
	cfg := Config{Verbose: true, File: path, MaxSizeMB: 1}
	w := cfg.Writer()
	lw, ok := w.(*lj.Logger)
	require.True(t, ok)
	assert.Equal(t, 1, lw.MaxSize)
	assert.Equal(t, DefaultMaxBackups, lw.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, lw.MaxAge)

	l, closer := New(cfg)
	l.Info("daemon started", "port", 8000)
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "daemon started")
	assert.Contains(t, string(b), "port=8000")
}

func TestWriterNilWithoutFile(t *testing.T) {
	assert.Nil(t, Config{}.Writer())
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	closer := Setup(Config{Debug: true, Output: &buf})
	defer func() { _ = closer.Close() }()
	slog.Debug("probe")
	assert.Contains(t, buf.String(), "probe")
	assert.Contains(t, buf.String(), "source=", "debug adds source locations")
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	l := slog.New(h).With("component", "daemon")

	l.Error("boom")
	l.Debug("trace")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\033[31mERROR\033[0m")
	assert.Contains(t, lines[0], "component=daemon", "attrs survive WithAttrs")
	assert.Contains(t, lines[1], "\033[36mDEBUG")
	assert.NotContains(t, buf.String(), "time=")
	assert.True(t, strings.HasPrefix(lines[0], "\033[31mERROR\033[0m msg=boom"), "got %q", lines[0])
	assert.NotContains(t, buf.String(), `\x1b`, "escape codes are not quoted into the record")
	assert.NotContains(t, buf.String(), "level=")

	buf.Reset()
	timed := slog.New(NewColorTextHandler(&buf, nil, true))
	timed.Info("hi")
	assert.Contains(t, buf.String(), "time=")
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestColorTextHandlerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewColorTextHandler(&buf, nil, false))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			base.With("worker", i).Info("tick")
		}(i)
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "\033[32mINFO \033[0m msg=tick worker="), "got %q", l)
	}
}
