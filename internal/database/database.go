// Package database provides connection setup for the relational store and
// Redis. Connections are created once at startup and shared across the
// application via dependency injection. This package owns the connection
// lifecycle (open, configure pool, ping, migrate, close).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	// SQL drivers -- imported for the side effect of registering themselves.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/keyxmakerx/gatekeeper/internal/config"
)

// DB is a connection pool that remembers which driver it was opened with.
// Repositories write queries with "?" placeholders and pass them through
// Rebind before executing them.
type DB struct {
	*sql.DB

	// Driver is one of config.DriverMySQL, DriverSQLite or DriverPostgres.
	Driver string
}

// Rebind rewrites "?" placeholders into the driver's native bind syntax.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Driver, query)
}

// Rebind rewrites "?" placeholders to "$1", "$2", ... for PostgreSQL and
// returns the query unchanged for the other drivers. Queries in this service
// never contain literal question marks.
func Rebind(driver, query string) string {
	if driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open creates a connection pool configured with the settings from the
// provided config. It pings the database to verify connectivity before
// returning.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// SQLite serializes writers anyway; a single connection avoids
	// "database is locked" errors under concurrent requests.
	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	// Retry with exponential backoff. The server may still be starting up
	// when the app container launches.
	const maxRetries = 10
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = db.PingContext(ctx)
		cancel()

		if pingErr == nil {
			return &DB{DB: db, Driver: cfg.Driver}, nil
		}

		if attempt == maxRetries {
			break
		}

		slog.Warn("database not ready, retrying...",
			slog.String("driver", cfg.Driver),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("pinging %s after %d attempts: %w", cfg.Driver, maxRetries, pingErr)
}
