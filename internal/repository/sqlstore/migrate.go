package sqlstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// migrate applies every pending migration for the current dialect.
// Already being at the latest version is not an error.
func (db *DB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations/"+string(db.dialect))
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	var driver database.Driver
	switch db.dialect {
	case dialectPostgres:
		driver, err = postgres.WithInstance(db.conn, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(db.conn, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("creating %s migration driver: %w", db.dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(db.dialect), driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	// The postgres driver checks out a dedicated connection that Close returns
	// to the pool. The sqlite driver's Close would close our shared pool.
	if db.dialect == dialectPostgres {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
