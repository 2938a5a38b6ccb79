package buddy

import (
	"io"
	"log/slog"
	"os"
)

// Runtime debug flag for allocation logging - controlled by BUDDY_LOG_ALLOC env var.
var logAlloc = os.Getenv("BUDDY_LOG_ALLOC") != ""

// defaultLogger discards everything unless BUDDY_LOG_ALLOC is set, in which
// case debug records go to stderr.
func defaultLogger() *slog.Logger {
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
