package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/stats/*.sql migrations/auth/*.sql
var migrationFS embed.FS

// Migrate brings both database files up to the latest embedded schema.
// Every migration uses CREATE ... IF NOT EXISTS and adds no constraints
// to existing tables, so an existing European Soccer Database file is
// accepted as-is.
func (s *Service) Migrate() error {
	if err := runMigrations(s.statsDB, "migrations/stats"); err != nil {
		return fmt.Errorf("stats database: %w", err)
	}
	if err := runMigrations(s.authDB, "migrations/auth"); err != nil {
		return fmt.Errorf("auth database: %w", err)
	}
	s.logger.Info("Database schema up to date")
	return nil
}

func runMigrations(db *sql.DB, dir string) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create database driver: %w", err)
	}

	d, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("could not create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("could not run up migrations: %w", err)
	}

	return nil
}
