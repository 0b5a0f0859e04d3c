// Package logger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// provides the HTTP access log middleware.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// Options overrides the environment. Empty fields fall back to LOG_LEVEL
// and LOG_FORMAT.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// ParseLevel maps debug, warn and error to their slog levels; anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup creates the default logger. Output goes to stderr unless
// opts.Output is set.
func Setup(opts Options) *slog.Logger {
	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	format := opts.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	ho := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(out, ho)
	} else {
		h = slog.NewTextHandler(out, ho)
	}

	l := slog.New(h)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// L returns the default logger, creating it from the environment on first use.
func L() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return Setup(Options{})
	}
	return l
}

// Discard is a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
