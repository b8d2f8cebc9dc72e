package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/config"
	"github.com/abduss/tribute/migrations"
)

// Migrate applies all pending embedded migrations and returns the resulting
// schema version.
func Migrate(cfg config.PostgresConfig, log *zap.Logger) (version uint, err error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return 0, fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return 0, fmt.Errorf("initialize postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("load migrations: %w", err)
	}
	defer func() {
		if closeErr := source.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration source: %w", closeErr)
		}
	}()

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	current, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("no migrations applied yet")
	case err != nil:
		return 0, fmt.Errorf("read migration version: %w", err)
	case dirty:
		return current, fmt.Errorf("schema version %d is dirty; fix it manually before migrating", current)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err = migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	log.Info("migrations applied", zap.Uint("version", version))

	return version, nil
}
