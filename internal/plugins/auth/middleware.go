package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

// RequireAuth returns the app-wide auth hook. Paths on the excluded list
// pass through. Otherwise a request with neither an Authorization header
// nor a session cookie gets 401, and one whose credentials resolve to no
// user gets 403. The resolved user is stored in the Echo context (see
// users.Current).
//
// A nil authenticator disables the hook.
func RequireAuth(a Authenticator, excluded []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if a == nil {
			return next
		}
		return func(c echo.Context) error {
			r := c.Request()
			if !a.RequireAuth(r.URL.Path, excluded) {
				return next(c)
			}

			if a.AuthorizationHeader(r) == "" && a.SessionCookie(r) == "" {
				return apperror.NewUnauthorized("Unauthorized")
			}

			user := a.CurrentUser(r)
			if user == nil {
				return apperror.NewForbidden("Forbidden")
			}

			users.SetCurrent(c, user)
			return next(c)
		}
	}
}
