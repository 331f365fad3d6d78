//go:build integration

package testutil

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/attaboy/payouts/internal/infra"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// runMigrations applies db/migrations to the test database.
func runMigrations(dsn string) error {
	m, err := migrate.New("file://"+filepath.ToSlash(infra.FindMigrationDir()), dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
