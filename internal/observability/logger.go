package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs the process-wide slog default. format is "json" or
// "text"; unknown levels fall back to info.
func SetupLogger(level, format string) {
	slog.SetDefault(slog.New(newHandler(os.Stdout, level, format)))
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(level string) slog.Level {
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
