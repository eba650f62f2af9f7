package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"ratebot/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded schema migrations for the configured driver.
// It uses its own connection because the migrate drivers close the handle they own.
func RunMigrations(cfg *config.DatabaseConfig, logger *zap.SugaredLogger) error {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	var (
		driver database.Driver
		dir    string
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		dir = "migrations/sqlite"
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case config.DriverPostgres:
		dir = "migrations/postgres"
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("creating %s migration driver: %w", cfg.Driver, err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("migrations read error: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Driver, driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warnw("Closing migrator failed", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading migration version: %w", err)
	}
	logger.Infow("Migrations applied", "driver", cfg.Driver, "version", version, "dirty", dirty)
	return nil
}
