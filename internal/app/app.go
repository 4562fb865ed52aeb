// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, optional Redis client, Echo
// instance), builds the authenticator selected by AUTH_TYPE and wires the
// plugins together.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/database"
	"github.com/keyxmakerx/gatekeeper/internal/middleware"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/auth"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the relational connection pool shared by all plugins.
	DB *database.DB

	// Redis is only set when the redis session store is selected.
	Redis *redis.Client

	// Users is the user store shared by the authenticator and the handlers.
	Users users.UserRepository

	// Auth is the active authenticator; nil when AUTH_TYPE=none.
	Auth auth.Authenticator

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App with the given dependencies, builds the
// authenticator and configures the Echo server with global middleware and
// error handling.
func New(cfg *config.Config, db *database.DB, rdb *redis.Client) (*App, error) {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Trust forwarding headers only from known proxy ranges so c.RealIP()
	// (and with it rate limiting) sees the real client.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	repo := users.NewUserRepository(db)
	authn, err := auth.New(cfg.Auth, auth.Deps{Users: repo, DB: db, Redis: rdb})
	if err != nil {
		return nil, fmt.Errorf("building authenticator: %w", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Users:  repo,
		Auth:   authn,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (auth) runs last.
func (a *App) setupMiddleware() {
	// "/api/v1/status/" and "/api/v1/status" route to the same handler.
	a.Echo.Pre(echomw.RemoveTrailingSlash())

	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())

	if len(a.Config.CORSOrigins) > 0 {
		a.Echo.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   a.Config.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	// Authentication hook -- every path not on ExcludedPaths needs
	// credentials that resolve to a user.
	a.Echo.Use(auth.RequireAuth(a.Auth, ExcludedPaths))
}

// errorHandler is the custom Echo error handler. Every error becomes
// {"error": "<message>"} with the matching status code. Internal causes are
// logged, never returned.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := apperror.SafeMessage(err)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		// Router errors (404, 405) and binder errors.
		code = echoErr.Code
		message = defaultErrorMessage(code)
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": message})
}

// defaultErrorMessage returns the client message for framework errors.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not found"
	default:
		if text := http.StatusText(code); text != "" {
			return text
		}
		return "an unexpected error occurred"
	}
}

// Start begins listening for HTTP requests on the configured address.
func (a *App) Start() error {
	addr := a.Config.Addr()
	slog.Info("starting gatekeeper server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("auth_type", a.Config.Auth.Type),
	)
	return a.Echo.Start(addr)
}
