package logger

import (
	"log/slog"
	"os"
)

// New returns the service-wide structured logger. JSON output keeps the
// audit-adjacent operational logs machine-parseable.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
