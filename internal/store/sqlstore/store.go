// Package sqlstore keeps media metadata in an embedded SQLite database for
// single-node deployments and the operator CLI.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path     string
	LogLevel logger.LogLevel
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// DB is an open SQLite metadata database.
type DB struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path and applies the
// schema. Derivative rows are removed together with their media row by
// MediaStore.Delete.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	dsn := cfg.Path
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)"

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(cfg.LogLevel),
		NowFunc: cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	// SQLite only supports one writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &DB{db: gdb, now: cfg.Now}
	if err := s.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&mediaRow{}, &derivativeRow{}); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

// Media returns the media metadata store.
func (s *DB) Media() *MediaStore {
	return &MediaStore{db: s.db, now: s.now}
}

// Derivatives returns the derivative metadata store.
func (s *DB) Derivatives() *DerivativeStore {
	return &DerivativeStore{db: s.db, now: s.now}
}

// Ping checks database connectivity.
func (s *DB) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *DB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	return sqlDB.Close()
}
