package logging

import (
	"io"
	"log"
	"log/slog"
	"strings"
)

// New builds the service logger. format is "json" or "text"; level is one of
// debug, info, warn or error and defaults to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Init builds the logger, makes it the slog default and points the legacy
// stdlib log at the same writer
func Init(w io.Writer, level, format string) *slog.Logger {
	logger := New(w, level, format)
	slog.SetDefault(logger)
	log.SetOutput(w)
	return logger
}

// ParseLevel maps a level name to its slog level
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
