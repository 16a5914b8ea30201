package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services receive it by injection and must
// tolerate a nil logger, so tests can construct services without one.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
