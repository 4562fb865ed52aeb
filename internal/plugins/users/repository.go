package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keyxmakerx/gatekeeper/internal/database"
)

// userColumns is the select list shared by every read query.
const userColumns = `id, email, hashed_password, session_id, reset_token,
	first_name, last_name, created_at, updated_at`

// searchable lists the columns a Predicate may name.
var searchable = map[string]bool{
	"id":          true,
	"email":       true,
	"session_id":  true,
	"reset_token": true,
}

// updatable lists the columns Update may write. id and created_at are
// immutable; updated_at is stamped by the store.
var updatable = map[string]bool{
	"email":           true,
	"hashed_password": true,
	"session_id":      true,
	"reset_token":     true,
	"first_name":      true,
	"last_name":       true,
}

// UserRepository defines the data access contract for users.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type UserRepository interface {
	// Find returns the first user matching every pair in p.
	Find(ctx context.Context, p Predicate) (*User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, id string, fields Fields) error
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// userRepository implements UserRepository with hand-written SQL. Queries
// use ? placeholders and are rebound for the active driver.
type userRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewUserRepository creates a user repository backed by the given DB pool.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Find builds a WHERE clause from the predicate. Keys are sorted so the
// generated SQL is stable.
func (r *userRepository) Find(ctx context.Context, p Predicate) (*User, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty predicate", ErrUnknownField)
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		if !searchable[k] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		conds[i] = k + " = ?"
		v := p[k]
		if k == "email" {
			v = normalizeEmail(v)
		}
		args[i] = v
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY created_at LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, r.db.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// List returns every user, oldest first.
func (r *userRepository) List(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Count returns the number of users.
func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// Create inserts a user. The caller supplies the id; timestamps default to
// now when zero. Returns ErrEmailTaken if the email is already stored.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	user.Email = normalizeEmail(user.Email)

	var exists int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM users WHERE email = ?`), user.Email).Scan(&exists)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking email: %w", err)
	}

	now := r.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query := `INSERT INTO users (id, email, hashed_password, session_id, reset_token,
	                             first_name, last_name, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.db.Rebind(query),
		user.ID,
		user.Email,
		user.HashedPassword,
		nullable(user.SessionID),
		nullable(user.ResetToken),
		nullable(user.FirstName),
		nullable(user.LastName),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// Update writes the given columns and stamps updated_at. An empty field set
// still stamps updated_at, which doubles as an existence check.
func (r *userRepository) Update(ctx context.Context, id string, fields Fields) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !updatable[k] {
			return fmt.Errorf("%w: %q", ErrUnknownField, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			if s, ok := v.(string); ok {
				v = normalizeEmail(s)
			}
		}
		sets = append(sets, k+" = ?")
		args = append(args, normalizeValue(v))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now(), id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user row.
func (r *userRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return n > 0, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	u := &User{}
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.HashedPassword,
		&u.SessionID,
		&u.ResetToken,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// nullable maps a nil pointer to SQL NULL.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// normalizeValue unwraps *string values so typed nil pointers become NULL.
func normalizeValue(v any) any {
	if s, ok := v.(*string); ok {
		return nullable(s)
	}
	return v
}
