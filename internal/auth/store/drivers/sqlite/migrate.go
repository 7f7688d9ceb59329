package sqlite

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store/drivers/sqlite/migrations"
)

// ErrDirtySchema means a previous migration failed part way and the
// schema needs manual repair before the server can start.
var ErrDirtySchema = errors.New("sqlite: schema is dirty")

// ApplyMigrations brings the schema up to the newest embedded migration.
// Running it against an up to date database is a no-op.
func (m *Store) ApplyMigrations() error {
	instance, err := m.migrator()
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}

	version, dirty, err := instance.Version()
	if err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}
	return nil
}

// SchemaVersion reports the last applied migration, or 0 on a fresh
// database.
func (m *Store) SchemaVersion() (uint, error) {
	instance, err := m.migrator()
	if err != nil {
		return 0, err
	}
	version, dirty, err := instance.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	case dirty:
		return version, fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}
	return version, nil
}

// migrator wraps the open handle. The instance is never closed since
// that would close m.db with it.
func (m *Store) migrator() (*migrate.Migrate, error) {
	driver, err := migratesqlite.WithInstance(m.db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlite: migration driver: %w", err)
	}
	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("sqlite: migration source: %w", err)
	}
	instance, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return instance, nil
}
