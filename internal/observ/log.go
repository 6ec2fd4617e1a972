package observ

import (
	"io"
	"log/slog"
	"strings"
)

// LevelQuiet is above every standard level and silences a logger.
const LevelQuiet = slog.Level(100)

// NewLogger returns a text logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelQuiet}))
}

// LevelFromString converts debug|info|warn|error|quiet to a level.
// Unrecognized values fall back to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "quiet", "off", "none":
		return LevelQuiet
	default:
		return slog.LevelInfo
	}
}
