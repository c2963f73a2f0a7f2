package bootstrap

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveiliop56/tinyprovider/internal/assets"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

func (app *BootstrapApp) SetupDatabase(databasePath string) (*sql.DB, error) {
	dir := filepath.Dir(databasePath)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", databasePath)

	db, err := sql.Open("sqlite", dsn)

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers, grant find-or-create relies on it
	db.SetMaxOpenConns(1)

	migrations, err := iofs.New(assets.Migrations, "migrations")

	if err != nil {
		return nil, fmt.Errorf("failed to create migrations: %w", err)
	}

	target, err := sqlite.WithInstance(db, &sqlite.Config{})

	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", migrations, "sqlite", target)

	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
