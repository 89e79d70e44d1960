package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config selects the level and the destination of the process logger.
// With File empty, logs go to Output (stderr when nil). Rotation
// parameters follow lumberjack semantics.
type Config struct {
	Verbose    bool
	Debug      bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Output     io.Writer
}

// Level maps the CLI flags to a slog level: warn by default, info with
// verbose, debug with debug.
func Level(verbose, debug bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// Writer returns the rotating file writer for c.File, or nil when logging
// to a stream.
func (c Config) Writer() io.WriteCloser {
	if c.File == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.File,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// New builds a logger from c. The returned closer releases the log file
// and is never nil.
func New(c Config) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: Level(c.Verbose, c.Debug), AddSource: c.Debug}

	if w := c.Writer(); w != nil {
		return slog.New(slog.NewTextHandler(w, opts)), w
	}
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	if isTerminal(out) {
		return slog.New(NewColorTextHandler(out, opts, c.Debug)), nopCloser{}
	}
	return slog.New(slog.NewTextHandler(out, opts)), nopCloser{}
}

// Setup installs New(c) as the default slog logger.
func Setup(c Config) io.Closer {
	l, closer := New(c)
	slog.SetDefault(l)
	return closer
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
