// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger, tagged with the service name. Level
// parsing is forgiving: unknown values fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler).With("service", "outflow"))
}

// WithModule returns a logger carrying the component name on every line that
// component writes.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
