package testutil

import (
	"log/slog"

	"github.com/JuneJin9655/ai-chat/internal/log"
)

// DiscardLogger returns a slog.Logger that discards all output. Use it to
// keep test output quiet when a component requires a logger.
func DiscardLogger() *slog.Logger {
	return log.NewNop()
}
