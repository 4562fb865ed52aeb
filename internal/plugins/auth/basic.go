package auth

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
)

const basicPrefix = "Basic "

// BasicAuth resolves "Authorization: Basic" credentials against the user
// store on every request. It issues no sessions.
type BasicAuth struct {
	*Auth
	users UserFinder
}

// NewBasicAuth creates a Basic authenticator on top of base.
func NewBasicAuth(base *Auth, finder UserFinder) *BasicAuth {
	return &BasicAuth{Auth: base, users: finder}
}

// CurrentUser decodes the header and verifies the password.
func (a *BasicAuth) CurrentUser(r *http.Request) *users.User {
	encoded := ExtractBase64Credentials(a.AuthorizationHeader(r))
	decoded := DecodeBase64Credentials(encoded)
	email, pw := SplitCredentials(decoded)
	if email == "" || pw == "" {
		return nil
	}
	return a.UserFromCredentials(r.Context(), email, pw)
}

// UserFromCredentials returns the user owning email if pw matches.
func (a *BasicAuth) UserFromCredentials(ctx context.Context, email, pw string) *users.User {
	if email == "" || pw == "" {
		return nil
	}
	user, err := a.users.Find(ctx, users.Predicate{"email": email})
	if err != nil {
		slog.Debug("basic auth lookup failed", slog.Any("error", err))
		return nil
	}
	if !user.IsValidPassword(pw) {
		return nil
	}
	return user
}

// ExtractBase64Credentials returns the part of header after "Basic ", or
// "" if header does not use the Basic scheme.
func ExtractBase64Credentials(header string) string {
	encoded, ok := strings.CutPrefix(header, basicPrefix)
	if !ok {
		return ""
	}
	return encoded
}

// DecodeBase64Credentials decodes standard base64 into a UTF-8 string, or
// returns "" for malformed input.
func DecodeBase64Credentials(encoded string) string {
	if encoded == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return ""
	}
	return string(raw)
}

// SplitCredentials splits "email:password" on the first colon. Passwords
// may contain colons.
func SplitCredentials(decoded string) (email, pw string) {
	email, pw, ok := strings.Cut(decoded, ":")
	if !ok {
		return "", ""
	}
	return email, pw
}
