package users

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/middleware"
)

// RegisterRoutes sets up the account routes. Authentication is enforced by
// the app-wide auth hook; the form endpoints are on its excluded list.
//
// Registration and reset-token requests are rate-limited per IP.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/users", h.Register, middleware.RateLimit(5, time.Minute))
	e.GET("/profile", h.Profile)
	e.POST("/reset_password", h.ResetPasswordToken, middleware.RateLimit(5, time.Minute))
	e.PUT("/reset_password", h.UpdatePassword)

	api := e.Group("/api/v1")
	api.GET("/stats", h.Stats)
	api.GET("/users", h.List)
	api.GET("/users/:id", h.Show)
	api.POST("/users", h.Create)
	api.PUT("/users/:id", h.Update)
	api.DELETE("/users/:id", h.Delete)
}
