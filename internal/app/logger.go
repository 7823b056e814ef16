package app

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger from configuration. LOG_FORMAT picks
// json or text output and LOG_LEVEL sets the floor.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelInfo,
	}
	if cfg == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	opts.Level = parseLogLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
