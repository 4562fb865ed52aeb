package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/auth"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

// ExcludedPaths are reachable without credentials. Entries are compared
// without trailing slashes; a trailing "*" makes an entry a prefix.
var ExcludedPaths = []string{
	"/",
	"/healthz",
	"/users",
	"/profile",
	"/sessions",
	"/reset_password",
	"/api/v1/status/",
	"/api/v1/stats/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// RegisterRoutes sets up all application routes. It registers the public
// routes directly and delegates to each plugin's route registration.
//
// This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Bienvenue"})
	})

	// Health check for container orchestration.
	e.GET("/healthz", a.healthz)

	api := e.Group("/api/v1")
	api.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	api.GET("/unauthorized", func(echo.Context) error {
		return apperror.NewUnauthorized("Unauthorized")
	})
	api.GET("/forbidden", func(echo.Context) error {
		return apperror.NewForbidden("Forbidden")
	})

	// --- Plugin Routes ---

	userService := users.NewUserService(a.Users)
	users.RegisterRoutes(e, users.NewHandler(userService, a.currentUser()))

	// Login and logout only exist when the authenticator issues sessions.
	if sa, ok := a.Auth.(*auth.SessionAuth); ok {
		auth.RegisterRoutes(e, auth.NewHandler(sa, userService))
	}
}

// currentUser adapts the active authenticator for /profile, which is
// excluded from the auth hook so that every miss is answered with 403.
func (a *App) currentUser() users.CurrentUserFunc {
	if a.Auth == nil {
		return nil
	}
	return a.Auth.CurrentUser
}

// healthz pings the database and, when configured, Redis.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok"}
	code := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if a.Redis != nil {
		status["redis"] = "ok"
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, status)
}
