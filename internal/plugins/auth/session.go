package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

// Session is one server-side session record.
type Session struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore persists sessions by id. Load reports a miss with ok=false
// and a nil error.
type SessionStore interface {
	Save(ctx context.Context, id string, s Session) error
	Load(ctx context.Context, id string) (s Session, ok bool, err error)
	Delete(ctx context.Context, id string) (bool, error)
}

// SessionAuth is the session authenticator: the base policy plus a session
// store and an expiration window. A zero or negative duration disables
// expiration.
type SessionAuth struct {
	*Auth
	store    SessionStore
	users    UserFinder
	duration time.Duration
	now      func() time.Time
}

// SessionOption configures a SessionAuth.
type SessionOption func(*SessionAuth)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(a *SessionAuth) { a.now = now }
}

// WithDuration sets the session lifetime.
func WithDuration(d time.Duration) SessionOption {
	return func(a *SessionAuth) { a.duration = d }
}

// NewSessionAuth creates a session authenticator over store.
func NewSessionAuth(base *Auth, store SessionStore, finder UserFinder, opts ...SessionOption) *SessionAuth {
	a := &SessionAuth{
		Auth:  base,
		store: store,
		users: finder,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Duration is the configured session lifetime.
func (a *SessionAuth) Duration() time.Duration {
	return a.duration
}

// CreateSession stores a fresh random session id for userID.
func (a *SessionAuth) CreateSession(ctx context.Context, userID string) string {
	if _, err := uuid.Parse(userID); err != nil {
		return ""
	}

	id := uuid.NewString()
	if err := a.store.Save(ctx, id, Session{UserID: userID, CreatedAt: a.now()}); err != nil {
		slog.Error("saving session", slog.String("user_id", userID), slog.Any("error", err))
		return ""
	}
	return id
}

// UserIDForSessionID resolves a live session. Expired sessions are removed
// from the store when found.
func (a *SessionAuth) UserIDForSessionID(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}

	s, ok, err := a.store.Load(ctx, sessionID)
	if err != nil {
		slog.Warn("loading session", slog.Any("error", err))
		return ""
	}
	if !ok || s.UserID == "" {
		return ""
	}

	if a.expired(s) {
		if _, err := a.store.Delete(ctx, sessionID); err != nil {
			slog.Warn("deleting expired session", slog.Any("error", err))
		}
		return ""
	}
	return s.UserID
}

// CurrentUser loads the user owning the request's session.
func (a *SessionAuth) CurrentUser(r *http.Request) *users.User {
	userID := a.UserIDForSessionID(r.Context(), a.SessionCookie(r))
	if userID == "" {
		return nil
	}

	user, err := a.users.Find(r.Context(), users.Predicate{"id": userID})
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			slog.Warn("loading session user", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil
	}
	return user
}

// DestroySession removes the request's session if it is live.
func (a *SessionAuth) DestroySession(r *http.Request) bool {
	if r == nil {
		return false
	}
	sessionID := a.SessionCookie(r)
	if a.UserIDForSessionID(r.Context(), sessionID) == "" {
		return false
	}

	ok, err := a.store.Delete(r.Context(), sessionID)
	if err != nil {
		slog.Warn("deleting session", slog.Any("error", err))
		return false
	}
	return ok
}

// expired reports whether now has reached CreatedAt+duration.
func (a *SessionAuth) expired(s Session) bool {
	if a.duration <= 0 {
		return false
	}
	if s.CreatedAt.IsZero() {
		return true
	}
	return !a.now().Before(s.CreatedAt.Add(a.duration))
}
