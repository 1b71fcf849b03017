package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services and handlers log
// through slog with key-value attrs; tests swap in a discard handler.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
