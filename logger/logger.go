// Package logger configures the process wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a default logger writing to stderr and returns it.
func Init(level, format string) *slog.Logger {
	return New(os.Stderr, level, format)
}

// New installs a default logger writing to w and returns it.
// format is "json" or "text"; unknown levels fall back to info. Records
// logged within a span carry its trace_id and span_id.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(spanHandler{h})
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
