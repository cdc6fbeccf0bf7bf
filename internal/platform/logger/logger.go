package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services take it as a dependency so tests
// can hand in their own.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
