package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/gatekeeper/internal/database"
)

// DBStore persists sessions in the user_sessions table. Saves are mirrored
// into an in-memory map, but lookups always read the table so a row deleted
// elsewhere is never resurrected from the mirror. Mirror entries older than
// maxAge are dropped on each save; expired rows are only removed when a
// lookup discovers them.
type DBStore struct {
	db     *database.DB
	mirror *MemoryStore
	maxAge time.Duration
}

// NewDBStore creates a session store backed by the given DB pool. maxAge is
// the session duration; zero or less keeps mirror entries until deleted.
func NewDBStore(db *database.DB, maxAge time.Duration) *DBStore {
	return &DBStore{db: db, mirror: NewMemoryStore(), maxAge: maxAge}
}

// Save inserts the session row, then records it in the mirror.
func (s *DBStore) Save(ctx context.Context, id string, sess Session) error {
	query := `INSERT INTO user_sessions (session_id, user_id, created_at) VALUES (?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), id, sess.UserID, sess.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	if s.maxAge > 0 {
		// Expired at the new session's creation time: created+maxAge <= now.
		s.mirror.pruneBefore(sess.CreatedAt.Add(-s.maxAge).Add(time.Nanosecond))
	}
	return s.mirror.Save(ctx, id, sess)
}

// Load reads the session row.
func (s *DBStore) Load(ctx context.Context, id string) (Session, bool, error) {
	query := `SELECT user_id, created_at FROM user_sessions WHERE session_id = ?`

	var sess Session
	err := s.db.QueryRowContext(ctx, s.db.Rebind(query), id).Scan(&sess.UserID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("querying session: %w", err)
	}
	return sess, true, nil
}

// Delete removes the row and the mirror entry. It reports whether a row
// was removed.
func (s *DBStore) Delete(ctx context.Context, id string) (bool, error) {
	_, _ = s.mirror.Delete(ctx, id)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM user_sessions WHERE session_id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return n > 0, nil
}

// Mirrored returns the number of sessions held in the in-memory mirror.
func (s *DBStore) Mirrored() int {
	return s.mirror.Len()
}
