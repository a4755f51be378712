package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/JuneJin9655/ai-chat/db"
)

// runMigrate applies pending database migrations and exits. The target
// database comes from the command line argument or DATABASE_URL, so it works
// in deploy pipelines without the full server configuration.
//
// Usage: ai-chat migrate [postgres-url]
func runMigrate() error {
	logger := initLogger()
	slog.SetDefault(logger)

	connURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 2 {
		connURL = os.Args[2]
	}
	if connURL == "" {
		return errors.New("migrate requires a postgres URL argument or DATABASE_URL")
	}

	if err := db.Migrate(connURL); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
