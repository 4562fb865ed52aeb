package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/keyxmakerx/gatekeeper/internal/database/migrations"
)

// RunMigrations applies all pending embedded migrations using the goose
// dialect that matches the pool's driver. Safe to call on every startup;
// already-applied migrations are skipped.
func RunMigrations(ctx context.Context, db *DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(db.Driver); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("reading migration version: %w", err)
	}

	slog.Info("migrations applied",
		slog.String("driver", db.Driver),
		slog.Int64("version", version),
	)

	return nil
}
