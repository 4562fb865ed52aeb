package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

// Handler handles login and logout. It is only mounted when the active
// authenticator issues sessions.
type Handler struct {
	auth  *SessionAuth
	users users.UserService
}

// NewHandler creates a new auth handler.
func NewHandler(auth *SessionAuth, service users.UserService) *Handler {
	return &Handler{auth: auth, users: service}
}

// Login opens a session from form credentials (POST /sessions). Unknown
// emails and wrong passwords are both 401.
func (h *Handler) Login(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	pw := c.FormValue("password")
	if email == "" || pw == "" {
		return apperror.NewUnauthorized("Unauthorized")
	}

	user, err := h.users.Login(c.Request().Context(), email, pw)
	if err != nil {
		switch apperror.SafeCode(err) {
		case http.StatusNotFound, http.StatusUnauthorized:
			return apperror.NewUnauthorized("Unauthorized")
		}
		return err
	}
	if err := h.startSession(c, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"email":   user.Email,
		"message": "logged in",
	})
}

// Logout destroys the request's session (DELETE /sessions).
func (h *Handler) Logout(c echo.Context) error {
	if !h.endSession(c) {
		return apperror.NewForbidden("Forbidden")
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// APILogin opens a session and returns the user (POST
// /api/v1/auth_session/login).
func (h *Handler) APILogin(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		return apperror.NewBadRequest("email missing")
	}
	pw := c.FormValue("password")
	if pw == "" {
		return apperror.NewBadRequest("password missing")
	}

	user, err := h.users.Login(c.Request().Context(), email, pw)
	if err != nil {
		return err
	}
	if err := h.startSession(c, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// APILogout destroys the request's session (DELETE
// /api/v1/auth_session/logout).
func (h *Handler) APILogout(c echo.Context) error {
	if !h.endSession(c) {
		return apperror.NewNotFound("Not found")
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

// startSession creates the session, records it on the user row and sets
// the cookie.
func (h *Handler) startSession(c echo.Context, user *users.User) error {
	ctx := c.Request().Context()

	sessionID := h.auth.CreateSession(ctx, user.ID)
	if sessionID == "" {
		return apperror.NewInternal(errors.New("session not created"))
	}
	if err := h.users.SetSessionID(ctx, user.ID, &sessionID); err != nil {
		return err
	}

	setSessionCookie(c, h.auth.SessionName(), sessionID, h.auth.Duration().Seconds())

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}

// endSession destroys the session and clears the user's session column.
func (h *Handler) endSession(c echo.Context) bool {
	r := c.Request()
	userID := h.auth.UserIDForSessionID(r.Context(), h.auth.SessionCookie(r))
	if !h.auth.DestroySession(r) {
		return false
	}

	if err := h.users.SetSessionID(r.Context(), userID, nil); err != nil {
		slog.Warn("clearing session column",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
	clearSessionCookie(c, h.auth.SessionName())
	return true
}

// --- Cookie helpers ---

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure if behind TLS, and SameSite=Lax. It
// outlives the browser session only when sessions expire.
func setSessionCookie(c echo.Context, name, value string, maxAge float64) {
	req := c.Request()
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge)
	}
	c.SetCookie(cookie)
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
