package users

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
)

// Handler handles HTTP requests for accounts: the form endpoints at the
// root and the JSON CRUD API. Handlers are thin: they bind the request, call
// the service, and render the response.
type Handler struct {
	service     UserService
	currentUser CurrentUserFunc
}

// CurrentUserFunc resolves the user behind a request's credentials, or nil.
type CurrentUserFunc func(r *http.Request) *User

// NewHandler creates a new users handler. currentUser resolves /profile
// requests; nil means no request ever resolves.
func NewHandler(service UserService, currentUser CurrentUserFunc) *Handler {
	return &Handler{service: service, currentUser: currentUser}
}

// --- Form endpoints ---

// Register creates an account from form fields (POST /users).
func (h *Handler) Register(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		return apperror.NewBadRequest("email required")
	}
	pw := c.FormValue("password")
	if pw == "" {
		return apperror.NewBadRequest("password required")
	}

	user, err := h.service.Register(c.Request().Context(), email, pw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"email":   user.Email,
		"message": "user created",
	})
}

// Profile returns the email of the session's user (GET /profile). The
// route is public so that every miss, with or without a cookie, is 403.
func (h *Handler) Profile(c echo.Context) error {
	user := Current(c)
	if user == nil && h.currentUser != nil {
		user = h.currentUser(c.Request())
	}
	if user == nil {
		return apperror.NewForbidden("Forbidden")
	}
	return c.JSON(http.StatusOK, map[string]string{"email": user.Email})
}

// ResetPasswordToken issues a reset token (POST /reset_password).
func (h *Handler) ResetPasswordToken(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		return apperror.NewBadRequest("email required")
	}

	token, err := h.service.GetResetPasswordToken(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"email":       email,
		"reset_token": token,
	})
}

// UpdatePassword consumes a reset token (PUT /reset_password).
func (h *Handler) UpdatePassword(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	token := c.FormValue("reset_token")
	pw := c.FormValue("new_password")
	if email == "" || token == "" || pw == "" {
		return apperror.NewBadRequest("email, reset_token and new_password required")
	}

	if err := h.service.UpdatePassword(c.Request().Context(), token, pw); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"email":   email,
		"message": "Password updated",
	})
}

// --- JSON API ---

// Stats returns object counts (GET /api/v1/stats).
func (h *Handler) Stats(c echo.Context) error {
	n, err := h.service.Count(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"users": n})
}

// List returns every user (GET /api/v1/users).
func (h *Handler) List(c echo.Context) error {
	list, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Show returns one user (GET /api/v1/users/:id). The id "me" names the
// authenticated user.
func (h *Handler) Show(c echo.Context) error {
	id := c.Param("id")
	if id == "me" {
		user := Current(c)
		if user == nil {
			return apperror.NewNotFound("Not found")
		}
		return c.JSON(http.StatusOK, user)
	}

	user, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Create adds a user from a JSON body (POST /api/v1/users).
func (h *Handler) Create(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Wrong format")
	}

	user, err := h.service.Create(c.Request().Context(), CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// Update changes a user's names (PUT /api/v1/users/:id).
func (h *Handler) Update(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	if _, err := h.service.Get(ctx, id); err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Wrong format")
	}

	user, err := h.service.UpdateProfile(ctx, id, ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete removes a user (DELETE /api/v1/users/:id).
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{})
}
