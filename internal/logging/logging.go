// Package logging configures structured logging for tradesearch.
// Logs go to stderr so CLI output on stdout stays machine-readable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Writer overrides the output destination. Defaults to stderr.
	Writer io.Writer
	// JSON selects the JSON handler instead of the text handler.
	// Used by serve mode where logs are consumed by collectors.
	JSON bool
	// LevelVar, when set, controls the level dynamically. Config reloads
	// call LevelVar.Set without rebuilding the logger.
	LevelVar *slog.LevelVar
}

// DefaultConfig returns sensible defaults for CLI usage.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Setup builds a logger from the config and returns it.
func Setup(cfg Config) *slog.Logger {
	out := cfg.Writer
	if out == nil {
		out = os.Stderr
	}

	var level slog.Leveler = ParseLevel(cfg.Level)
	if cfg.LevelVar != nil {
		cfg.LevelVar.Set(ParseLevel(cfg.Level))
		level = cfg.LevelVar
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// SetupDefault configures the process-wide default logger.
func SetupDefault(cfg Config) *slog.Logger {
	logger := Setup(cfg)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string level to slog.Level. Unknown strings fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
