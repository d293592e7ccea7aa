// Package database provides the database connection, schema migrations and
// the question store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/edgard/slackqa/internal/config"
	"github.com/edgard/slackqa/migrations"

	_ "github.com/lib/pq"  //revive:disable:blank-imports
	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// Supported dialects. The names double as sqlx bind type names and as the
// migrations subdirectory.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// tracedDrivers maps a dialect to its otelsql-wrapped driver name.
var tracedDrivers = map[string]string{}

func init() {
	for dialect, system := range map[string]otelsql.DriverOption{
		DialectSQLite:   otelsql.WithSystem(semconv.DBSystemSqlite),
		DialectPostgres: otelsql.WithSystem(semconv.DBSystemPostgreSQL),
	} {
		driver, err := otelsql.Register(
			dialect,
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			system,
		)
		if err != nil {
			detail := "failed to register " + dialect + " driver with otel"
			slog.ErrorContext(context.Background(), detail, "error", err)
			panic(detail)
		}
		tracedDrivers[dialect] = driver
	}
}

// NewDB opens the configured database, applies migrations and returns the
// connection pool.
func NewDB(cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, ok := tracedDrivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := sqlx.NewDb(sqlDB, cfg.Driver)

	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == DialectSQLite || maxOpen <= 0 {
		// SQLite doesn't support concurrent writes
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db, logger)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := ApplyMigrations(db.DB, cfg.Driver, logger); err != nil {
		closeQuietly(db, logger)
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database connected and migrations applied", "driver", cfg.Driver, "dsn", RedactDSN(cfg.DSN))
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
	} else {
		logger.Info("Database connection closed")
	}
}

func closeQuietly(db *sqlx.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("Error closing database after setup failure", "error", err)
	}
}

// ApplyMigrations runs the embedded migrations for dialect.
func ApplyMigrations(db *sql.DB, dialect string, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	sourceDriver, err := iofs.New(migrations.FS, dialect)
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	var dbDriver database.Driver
	switch dialect {
	case DialectSQLite:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DialectPostgres:
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", dialect, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, dialect, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database migrations applied", "dialect", dialect)
	return nil
}

// RedactDSN hides the password of a URL-style DSN. File paths are returned
// unchanged.
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}
