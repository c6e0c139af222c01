package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies all pending schema migrations. When dir is empty the
// migrations compiled into the binary are used.
func Migrate(databaseURL string, dir string) (uint, error) {
	m, err := newMigrator(databaseURL, dir)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	logger.Info("[DB] Schema up to date", "version", version)
	return version, nil
}

func newMigrator(databaseURL string, dir string) (*migrate.Migrate, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}
	if dir != "" {
		m, err := migrate.New("file://"+dir, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open migrations in %s: %w", dir, err)
		}
		return m, nil
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
