// Package gorm provides GORM-based database operations for the insight
// engine. The store speaks PostgreSQL in production and embedded SQLite
// for local deployments and tests.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store represents the shared database connection.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	// DSN selects the backend: a postgres:// URL opens PostgreSQL,
	// anything else is treated as a SQLite file path.
	DSN      string
	MaxConns int             // Maximum open connections (default: 10; SQLite always runs on 1)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// NewStore opens the database, configures the pool, and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	dialector := dialectorFor(cfg.DSN)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	if db.Dialector.Name() != "postgres" {
		// SQLite transactions begin deferred and fail with SQLITE_BUSY
		// when they upgrade to a write while another connection holds the
		// write lock. A single connection serializes all transactions
		// instead, which is what the read-modify-write score paths need.
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Debug().Str("dialect", db.Dialector.Name()).Msg("store initialized")

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	// SQLite path. WAL keeps concurrent readers from blocking the writer.
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return sqlite.Open(dsn)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// isPostgres reports whether row-level locking clauses are available.
func (s *Store) isPostgres() bool {
	return s.DB.Dialector.Name() == "postgres"
}

// Transaction runs fn inside a database transaction bound to ctx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.DB.WithContext(ctx).Transaction(fn)
}
