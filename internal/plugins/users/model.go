// Package users owns the user records: the persistent store, the account
// flows built on it (registration, credential checks, password reset) and
// the JSON CRUD API under /api/v1/users.
package users

import (
	"errors"
	"strings"
	"time"

	"github.com/keyxmakerx/gatekeeper/internal/password"
)

// User is a registered account. Database scanning and JSON rendering use this
// struct directly; credential columns never leave the process.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	SessionID      *string   `json:"-"`
	ResetToken     *string   `json:"-"`
	FirstName      *string   `json:"first_name"`
	LastName       *string   `json:"last_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsValidPassword reports whether plaintext matches the stored digest.
func (u *User) IsValidPassword(plaintext string) bool {
	if u == nil {
		return false
	}
	return password.Verify(u.HashedPassword, plaintext)
}

// DisplayName is the best human label for the user: "First Last", either
// name alone, or the email.
func (u *User) DisplayName() string {
	var parts []string
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	if len(parts) == 0 {
		return u.Email
	}
	return strings.Join(parts, " ")
}

// Predicate selects users by column equality. Keys must be searchable
// columns; all pairs must match.
type Predicate map[string]string

// Fields is a partial update keyed by column name. A nil value writes NULL.
type Fields map[string]any

// Store errors. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrUnknownField      = errors.New("unknown user field")
	ErrInvalidResetToken = errors.New("invalid reset token")
)

// --- Request DTOs (bound from HTTP requests) ---

// CreateUserRequest is the JSON body of POST /api/v1/users.
type CreateUserRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UpdateUserRequest is the JSON body of PUT /api/v1/users/:id. Absent names
// are left unchanged.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// --- Service Input DTOs ---

// CreateInput is the validated input for creating a user through the API.
type CreateInput struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// ProfileInput carries the name changes for UpdateProfile.
type ProfileInput struct {
	FirstName *string
	LastName  *string
}

// normalizeEmail is applied on every write and lookup by email.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
