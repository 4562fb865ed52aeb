package users

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
)

// newTestServer wires the users routes without the auth hook. Errors are
// rendered the way the app's error handler renders AppErrors.
func newTestServer(t *testing.T) (*echo.Echo, UserService) {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith is newTestServer with a custom /profile resolver.
func newTestServerWith(t *testing.T, currentUser func(UserService, *http.Request) *User) (*echo.Echo, UserService) {
	t.Helper()
	svc := newTestService(t)

	var resolve CurrentUserFunc
	if currentUser != nil {
		resolve = func(r *http.Request) *User { return currentUser(svc, r) }
	}

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.JSON(apperror.SafeCode(err), map[string]string{"error": apperror.SafeMessage(err)})
	}
	RegisterRoutes(e, NewHandler(svc, resolve))
	return e, svc
}

func TestHandler_Register(t *testing.T) {
	e, _ := newTestServer(t)

	apitest.New().
		Handler(e).
		Post("/users").
		FormData("email", "a@b.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"email":"a@b.com","message":"user created"}`).
		End()

	apitest.New().
		Handler(e).
		Post("/users").
		FormData("email", "a@b.com").
		FormData("password", "pw1").
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"email already registered"}`).
		End()

	apitest.New().
		Handler(e).
		Post("/users").
		FormData("email", "c@d.com").
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"password required"}`).
		End()
}

func TestHandler_Profile(t *testing.T) {
	// Resolves the cookie "abc" to a@b.com and nothing else.
	e, svc := newTestServerWith(t, func(svc UserService, r *http.Request) *User {
		cookie, err := r.Cookie("session_id")
		if err != nil || cookie.Value != "abc" {
			return nil
		}
		users, err := svc.List(r.Context())
		if err != nil || len(users) == 0 {
			return nil
		}
		return &users[0]
	})
	_, err := svc.Register(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	apitest.New().
		Handler(e).
		Get("/profile").
		Cookie("session_id", "abc").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"email":"a@b.com"}`).
		End()

	apitest.New().
		Handler(e).
		Get("/profile").
		Cookie("session_id", "stale").
		Expect(t).
		Status(http.StatusForbidden).
		Body(`{"error":"Forbidden"}`).
		End()

	apitest.New().
		Handler(e).
		Get("/profile").
		Expect(t).
		Status(http.StatusForbidden).
		Body(`{"error":"Forbidden"}`).
		End()
}

func TestHandler_ProfileWithoutResolver(t *testing.T) {
	e, _ := newTestServer(t)

	apitest.New().
		Handler(e).
		Get("/profile").
		Cookie("session_id", "abc").
		Expect(t).
		Status(http.StatusForbidden).
		End()
}

func TestHandler_ResetPassword(t *testing.T) {
	e, svc := newTestServer(t)
	_, err := svc.Register(context.Background(), "a@b.com", "old")
	require.NoError(t, err)

	apitest.New().
		Handler(e).
		Post("/reset_password").
		FormData("email", "x@b.com").
		Expect(t).
		Status(http.StatusForbidden).
		End()

	var body struct {
		Email      string `json:"email"`
		ResetToken string `json:"reset_token"`
	}
	apitest.New().
		Handler(e).
		Post("/reset_password").
		FormData("email", "a@b.com").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.email", "a@b.com")).
		Assert(jsonpath.Present("$.reset_token")).
		End().
		JSON(&body)
	require.NotEmpty(t, body.ResetToken)

	apitest.New().
		Handler(e).
		Put("/reset_password").
		FormData("email", "a@b.com").
		FormData("reset_token", "wrong").
		FormData("new_password", "new").
		Expect(t).
		Status(http.StatusForbidden).
		Body(`{"error":"Forbidden"}`).
		End()

	apitest.New().
		Handler(e).
		Put("/reset_password").
		FormData("email", "a@b.com").
		FormData("reset_token", body.ResetToken).
		FormData("new_password", "new").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"email":"a@b.com","message":"Password updated"}`).
		End()

	require.True(t, svc.ValidLogin(context.Background(), "a@b.com", "new"))
}

func TestHandler_UsersAPI(t *testing.T) {
	e, _ := newTestServer(t)

	apitest.New().
		Handler(e).
		Post("/api/v1/users").
		JSON(`{"email":"a@b.com","password":"pw","first_name":"Ada"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.email", "a@b.com")).
		Assert(jsonpath.Equal("$.first_name", "Ada")).
		Assert(jsonpath.NotPresent("$.hashed_password")).
		End()

	var created User
	apitest.New().
		Handler(e).
		Get("/api/v1/users").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		End()

	apitest.New().
		Handler(e).
		Post("/api/v1/users").
		JSON(`{"email":"c@d.com","password":"pw"}`).
		Expect(t).
		Status(http.StatusCreated).
		End().
		JSON(&created)

	apitest.New().
		Handler(e).
		Get("/api/v1/users/" + created.ID).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.email", "c@d.com")).
		End()

	apitest.New().
		Handler(e).
		Put("/api/v1/users/" + created.ID).
		JSON(`{"last_name":"Hopper"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.last_name", "Hopper")).
		End()

	apitest.New().
		Handler(e).
		Get("/api/v1/stats").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"users":2}`).
		End()

	apitest.New().
		Handler(e).
		Delete("/api/v1/users/" + created.ID).
		Expect(t).
		Status(http.StatusOK).
		Body(`{}`).
		End()

	apitest.New().
		Handler(e).
		Get("/api/v1/users/" + created.ID).
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"Not found"}`).
		End()
}

func TestHandler_UsersAPIErrors(t *testing.T) {
	e, _ := newTestServer(t)

	apitest.New().
		Handler(e).
		Post("/api/v1/users").
		JSON(`{"email":`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"Wrong format"}`).
		End()

	apitest.New().
		Handler(e).
		Post("/api/v1/users").
		JSON(`{"password":"pw"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"email missing"}`).
		End()

	apitest.New().
		Handler(e).
		Post("/api/v1/users").
		JSON(`{"email":"a@b.com"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"password missing"}`).
		End()

	apitest.New().
		Handler(e).
		Get("/api/v1/users/me").
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().
		Handler(e).
		Put("/api/v1/users/missing").
		JSON(`{"first_name":"x"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().
		Handler(e).
		Delete("/api/v1/users/missing").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}
