// Package logger builds the application's *slog.Logger.
//
// Two output formats:
//   - text: key=value lines, easy to read in a terminal (development)
//   - json: one JSON object per line, for log shippers (production)
//
// The logger is created once in main.go and injected everywhere; it is also
// installed as slog's default so package-level slog calls (e.g. in the
// response helpers) go to the same place.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	Writer io.Writer // defaults to os.Stdout
	Format string    // "text" or "json"; anything else means text
	Level  string    // "debug", "info", "warn", "error"; default info
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Writer, opts)
	}
	return slog.New(handler)
}

// Setup creates a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	l := New(cfg)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a level name to slog.Level. Unknown names mean Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
