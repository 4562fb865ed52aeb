package users

import "github.com/labstack/echo/v4"

// contextKeyUser is where the auth middleware stores the resolved user.
const contextKeyUser = "current_user"

// SetCurrent attaches the authenticated user to the request context.
func SetCurrent(c echo.Context, user *User) {
	c.Set(contextKeyUser, user)
}

// Current retrieves the authenticated user from the Echo context.
// Returns nil if the request was not authenticated.
func Current(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}
