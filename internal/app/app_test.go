package app

import (
	"net/http"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/testutil"
)

func newTestApp(t *testing.T, authType string) *App {
	t.Helper()
	cfg := &config.Config{
		Env:  "test",
		Host: "127.0.0.1",
		Port: 0,
		Auth: config.AuthConfig{
			Type:            authType,
			SessionName:     "session_id",
			SessionDuration: time.Hour,
		},
	}
	a, err := New(cfg, testutil.NewSQLite(t), nil)
	require.NoError(t, err)
	a.RegisterRoutes()
	return a
}

func sessionCookie(t *testing.T, res apitest.Result) *http.Cookie {
	t.Helper()
	for _, c := range res.Response.Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestApp_PublicRoutes(t *testing.T) {
	a := newTestApp(t, config.AuthSession)

	apitest.New().
		Handler(a.Echo).
		Get("/").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Bienvenue"}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/status/").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"status":"OK"}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/unauthorized").
		Expect(t).
		Status(http.StatusUnauthorized).
		Body(`{"error":"Unauthorized"}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/forbidden").
		Expect(t).
		Status(http.StatusForbidden).
		Body(`{"error":"Forbidden"}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/stats").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"users":0}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/healthz").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.database", "ok")).
		Assert(jsonpath.NotPresent("$.redis")).
		End()
}

func TestApp_FormSessionFlow(t *testing.T) {
	for _, authType := range []string{config.AuthSession, config.AuthSessionExp, config.AuthSessionDB} {
		t.Run(authType, func(t *testing.T) {
			a := newTestApp(t, authType)

			apitest.New().
				Handler(a.Echo).
				Post("/users").
				FormData("email", "a@b.com").
				FormData("password", "pw1").
				Expect(t).
				Status(http.StatusOK).
				Body(`{"email":"a@b.com","message":"user created"}`).
				End()

			apitest.New().
				Handler(a.Echo).
				Post("/users").
				FormData("email", "a@b.com").
				FormData("password", "pw1").
				Expect(t).
				Status(http.StatusBadRequest).
				End()

			apitest.New().
				Handler(a.Echo).
				Post("/sessions").
				FormData("email", "a@b.com").
				FormData("password", "nope").
				Expect(t).
				Status(http.StatusUnauthorized).
				Body(`{"error":"Unauthorized"}`).
				End()

			res := apitest.New().
				Handler(a.Echo).
				Post("/sessions").
				FormData("email", "a@b.com").
				FormData("password", "pw1").
				Expect(t).
				Status(http.StatusOK).
				Body(`{"email":"a@b.com","message":"logged in"}`).
				End()
			cookie := sessionCookie(t, res)

			apitest.New().
				Handler(a.Echo).
				Get("/profile").
				Expect(t).
				Status(http.StatusForbidden).
				Body(`{"error":"Forbidden"}`).
				End()

			apitest.New().
				Handler(a.Echo).
				Get("/profile").
				Cookie("session_id", cookie.Value).
				Expect(t).
				Status(http.StatusOK).
				Body(`{"email":"a@b.com"}`).
				End()

			apitest.New().
				Handler(a.Echo).
				Delete("/sessions").
				Cookie("session_id", cookie.Value).
				Expect(t).
				Status(http.StatusOK).
				Body(`{}`).
				End()

			apitest.New().
				Handler(a.Echo).
				Get("/profile").
				Cookie("session_id", cookie.Value).
				Expect(t).
				Status(http.StatusForbidden).
				Body(`{"error":"Forbidden"}`).
				End()
		})
	}
}

func TestApp_APISessionFlow(t *testing.T) {
	a := newTestApp(t, config.AuthSessionDB)

	apitest.New().
		Handler(a.Echo).
		Post("/users").
		FormData("email", "bob@example.com").
		FormData("password", "H0lberton").
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(a.Echo).
		Post("/api/v1/auth_session/login").
		FormData("email", "bob@example.com").
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"error":"password missing"}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Post("/api/v1/auth_session/login").
		FormData("email", "nobody@example.com").
		FormData("password", "x").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"no user found for this email"}`).
		End()

	res := apitest.New().
		Handler(a.Echo).
		Post("/api/v1/auth_session/login").
		FormData("email", "bob@example.com").
		FormData("password", "H0lberton").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.email", "bob@example.com")).
		Assert(jsonpath.NotPresent("$.hashed_password")).
		End()
	cookie := sessionCookie(t, res)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/users/me").
		Cookie("session_id", cookie.Value).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.email", "bob@example.com")).
		End()

	apitest.New().
		Handler(a.Echo).
		Delete("/api/v1/auth_session/logout").
		Cookie("session_id", cookie.Value).
		Expect(t).
		Status(http.StatusOK).
		Body(`{}`).
		End()

	// The session is gone, so the hook rejects the stale cookie.
	apitest.New().
		Handler(a.Echo).
		Delete("/api/v1/auth_session/logout").
		Cookie("session_id", cookie.Value).
		Expect(t).
		Status(http.StatusForbidden).
		End()
}

func TestApp_BasicAuth(t *testing.T) {
	a := newTestApp(t, config.AuthBasic)

	apitest.New().
		Handler(a.Echo).
		Post("/users").
		FormData("email", "bob@example.com").
		FormData("password", "pw").
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/users/me").
		BasicAuth("bob@example.com", "pw").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.email", "bob@example.com")).
		End()

	// No session routes without a session authenticator.
	apitest.New().
		Handler(a.Echo).
		Post("/sessions").
		FormData("email", "bob@example.com").
		FormData("password", "pw").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"Not found"}`).
		End()
}

func TestApp_NoAuth(t *testing.T) {
	a := newTestApp(t, config.AuthNone)
	assert.Nil(t, a.Auth)

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/users").
		Expect(t).
		Status(http.StatusOK).
		Body(`[]`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/api/v1/users/missing").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"Not found"}`).
		End()

	apitest.New().
		Handler(a.Echo).
		Get("/nowhere").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"error":"Not found"}`).
		End()
}

func TestNew_RedisStoreWithoutClient(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{Type: config.AuthSessionRedis, SessionName: "session_id"}}
	_, err := New(cfg, testutil.NewSQLite(t), nil)
	assert.Error(t, err)
}
