package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/middleware"
)

// RegisterRoutes sets up the session routes. Login endpoints are
// rate-limited to slow down credential stuffing: 10 attempts per IP per
// minute.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/sessions", h.Login, middleware.RateLimit(10, time.Minute))
	e.DELETE("/sessions", h.Logout)

	api := e.Group("/api/v1/auth_session")
	api.POST("/login", h.APILogin, middleware.RateLimit(10, time.Minute))
	api.DELETE("/logout", h.APILogout)
}
