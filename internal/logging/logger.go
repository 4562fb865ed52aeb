package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options configures the application logger.
type Options struct {
	// Development selects human-readable text output instead of JSON.
	Development bool

	// Level is "debug", "info", "warn" or "error".
	Level string

	// RedactFields lists attribute keys masked before output.
	RedactFields []string
}

// New builds the application-wide logger. Development uses text format for
// readability. Production uses JSON for structured log aggregation. Both
// mask the configured PII attributes.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: RedactAttrs(opts.RedactFields),
	}

	var handler slog.Handler
	if opts.Development {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
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
