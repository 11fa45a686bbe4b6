package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the default slog logger. The level is taken from
// COURIER_LOG_LEVEL (debug, info, warn, error); anything else means info.
func Init() {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(os.Getenv("COURIER_LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
