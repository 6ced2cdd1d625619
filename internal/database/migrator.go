package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies the schema migrations for the papers, paper_sources and
// citation_edges tables. It borrows a database/sql connection from the pgx
// pool for the duration of its life and must be closed to release it.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB
	logger  zerolog.Logger
}

// NewMigrator opens a migrator over an existing pool. migrationsPath must
// point at the directory holding the numbered .sql files.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil || db.pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("postgres migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("component", "migrator").Logger(),
	}, nil
}

// Up applies all pending migrations. Already being at the latest version is
// not an error.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying schema migrations")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("schema already up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	m.logger.Info().Msg("schema migrations applied")
	return nil
}

// Down rolls back every migration, dropping the bibliographic schema.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all schema migrations")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("nothing to roll back")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	m.logger.Info().Msg("schema rolled back")
	return nil
}

// Steps runs n migrations: positive applies, negative rolls back.
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("running migration steps")

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("schema already up to date")
			return nil
		}
		// migrate reports stepping past the last file as a missing source file.
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no further migrations")
			return nil
		}
		return fmt.Errorf("migration steps: %w", err)
	}

	m.logger.Info().Int("steps", n).Msg("migration steps completed")
	return nil
}

// Version reports the current schema version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force overwrites the recorded version without running any migration.
// Recovery tool for a dirty schema; use with care.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing schema version")
	return m.migrate.Force(version)
}

// Close releases the migrator and returns its borrowed connection to the
// pool.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	switch {
	case sourceErr != nil && dbErr != nil:
		return fmt.Errorf("close migrator: source: %v, database: %w", sourceErr, dbErr)
	case sourceErr != nil:
		return fmt.Errorf("close migration source: %w", sourceErr)
	case dbErr != nil:
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}
