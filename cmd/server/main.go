// Package main is the entry point for the gatekeeper server. It loads
// configuration, establishes database connections, wires together the
// authenticator and plugins, and starts the HTTP server. Maintenance
// commands share the same configuration.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/keyxmakerx/gatekeeper/internal/app"
	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/database"
	"github.com/keyxmakerx/gatekeeper/internal/logging"
	"github.com/keyxmakerx/gatekeeper/internal/password"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	slog.SetDefault(logging.New(os.Stdout, logging.Options{
		Development:  cfg.IsDevelopment(),
		Level:        cfg.LogLevel,
		RedactFields: cfg.RedactFields,
	}))

	cliApp := &cli.App{
		Name:  "gatekeeper",
		Usage: "Account and session authentication service",
		Commands: []*cli.Command{
			serveCmd(cfg),
			migrateCmd(cfg),
			hashPasswordCmd(),
			dumpUsersCmd(cfg),
		},
		// Running without a command starts the server.
		Action: func(c *cli.Context) error {
			return serve(c.Context, cfg, true)
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func serveCmd(cfg *config.Config) *cli.Command {
	var migrate bool
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "migrate",
				Usage:       "Apply pending migrations before serving",
				Value:       true,
				Destination: &migrate,
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, cfg, migrate)
		},
	}
}

// serve runs the server until ctx is cancelled, then drains connections.
func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	slog.Info("starting gatekeeper",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("db_driver", cfg.Database.Driver),
	)

	// --- Connect to the database ---
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database", slog.String("driver", db.Driver))

	if migrate {
		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
	}

	// --- Connect to Redis ---
	// Only the redis session store needs it.
	var rdb *redis.Client
	if cfg.Auth.Type == config.AuthSessionRedis {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		slog.Info("connected to Redis")
	}

	// --- Create Application ---
	application, err := app.New(cfg, db, rdb)
	if err != nil {
		return err
	}
	application.RegisterRoutes()

	// --- Graceful Shutdown ---
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	// Give in-flight requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", slog.Any("error", err))
		return err
	}
	slog.Info("server stopped")
	return nil
}

func migrateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations and exit",
		Action: func(c *cli.Context) error {
			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()
			return database.RunMigrations(c.Context, db)
		},
	}
}

func hashPasswordCmd() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print the bcrypt digest of a password (read from stdin)",
		Action: func(c *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return err
				}
				return errors.New("missing password from stdin")
			}
			plaintext := strings.TrimRight(sc.Text(), "\r\n")
			if plaintext == "" {
				return errors.New("missing password from stdin")
			}

			digest, err := password.Hash(plaintext)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, digest)
			return err
		},
	}
}

func dumpUsersCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "dump-users",
		Usage: "Log every user record with personal data redacted",
		Action: func(c *cli.Context) error {
			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()

			return dumpUsers(c.Context, users.NewUserRepository(db), slog.New(
				logging.NewRedactingHandler(c.App.Writer, logging.HandlerOptions{Name: "user_data"}),
			))
		},
	}
}

// dumpUsers writes one redacted line per user.
func dumpUsers(ctx context.Context, repo users.UserRepository, logger *slog.Logger) error {
	list, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	for _, u := range list {
		logger.Info("",
			slog.String("id", u.ID),
			slog.String("email", u.Email),
			slog.String("first_name", deref(u.FirstName)),
			slog.String("last_name", deref(u.LastName)),
			slog.String("password", u.HashedPassword),
			slog.Time("created_at", u.CreatedAt),
		)
	}
	slog.Info("dumped users", slog.Int("count", len(list)))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
