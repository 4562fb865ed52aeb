// Package auth holds the authenticator chain: the base authenticator that
// decides which paths need credentials, HTTP Basic authentication, and the
// session authenticator assembled from a session store and an expiration
// policy. The variant is selected once at startup from AUTH_TYPE.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

// Authenticator decides whether a request needs credentials and resolves
// credentials to a user. Lookups never fail loudly: any miss reads as ""
// or nil.
type Authenticator interface {
	RequireAuth(path string, excluded []string) bool
	AuthorizationHeader(r *http.Request) string
	SessionCookie(r *http.Request) string
	CurrentUser(r *http.Request) *users.User
}

// SessionAuthenticator is an Authenticator that issues server-side sessions.
type SessionAuthenticator interface {
	Authenticator

	// CreateSession returns a new session id for userID, or "" if userID
	// is not a well-formed id or the session could not be stored.
	CreateSession(ctx context.Context, userID string) string
	// UserIDForSessionID returns the owner of a live session, or "".
	UserIDForSessionID(ctx context.Context, sessionID string) string
	// DestroySession reports whether the request's session existed and
	// was removed.
	DestroySession(r *http.Request) bool
}

// UserFinder is the slice of the user store the authenticators need.
type UserFinder interface {
	Find(ctx context.Context, p users.Predicate) (*users.User, error)
}

// Auth is the base authenticator. It knows the exemption policy and how to
// read credentials off a request, but resolves nobody.
type Auth struct {
	sessionName string
}

// NewAuth creates a base authenticator reading the named session cookie.
func NewAuth(sessionName string) *Auth {
	return &Auth{sessionName: sessionName}
}

// RequireAuth reports whether path needs credentials. Both path and entries
// are compared without trailing slashes; an entry ending in "*" matches any
// path with that prefix. An empty path or an empty list requires auth.
func (a *Auth) RequireAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	path = trimSlash(path)

	for _, entry := range excluded {
		if entry == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(entry, "*"); ok {
			if strings.HasPrefix(path, prefix) || path == trimSlash(prefix) {
				return false
			}
			continue
		}
		if path == trimSlash(entry) {
			return false
		}
	}
	return true
}

// AuthorizationHeader returns the Authorization header, or "".
func (a *Auth) AuthorizationHeader(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Authorization")
}

// SessionCookie returns the session cookie value, or "".
func (a *Auth) SessionCookie(r *http.Request) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(a.sessionName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// CurrentUser always returns nil for the base authenticator.
func (a *Auth) CurrentUser(*http.Request) *users.User {
	return nil
}

// SessionName is the cookie the authenticator reads.
func (a *Auth) SessionName() string {
	return a.sessionName
}

// trimSlash removes trailing slashes but keeps the root path.
func trimSlash(p string) string {
	t := strings.TrimRight(p, "/")
	if t == "" && strings.HasPrefix(p, "/") {
		return "/"
	}
	return t
}
