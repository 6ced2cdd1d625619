// Command migrate manages the bibliographic schema from the command line.
// It reuses the server's configuration for database settings, so the same
// BIBSYNC_* environment applies.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/config"
	"github.com/openshelf/bibsync-service/internal/database"
	"github.com/openshelf/bibsync-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "apply all pending migrations")
	down := flag.Bool("down", false, "roll back all migrations (drops the papers schema)")
	steps := flag.Int("steps", 0, "apply N migration steps (negative rolls back)")
	version := flag.Bool("version", false, "print the current schema version")
	force := flag.Int("force", -1, "overwrite the recorded schema version (dirty-state recovery)")
	migrationsPath := flag.String("path", "", "migrations directory (default: database.migration_path from config)")
	flag.Parse()

	actions := 0
	for _, selected := range []bool{*up, *down, *steps != 0, *version, *force >= 0} {
		if selected {
			actions++
		}
	}
	switch {
	case actions == 0:
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nspecify one of: -up, -down, -steps N, -version, -force V")
		return fmt.Errorf("no action specified")
	case actions > 1:
		return fmt.Errorf("specify exactly one action")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Console output for the CLI regardless of the server's log format.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch {
	case *up:
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case *down:
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case *steps != 0:
		if err := migrator.Steps(*steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case *force >= 0:
		if err := migrator.Force(*force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	}

	reportVersion(migrator, logger)
	return nil
}

func reportVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current schema version")
}
