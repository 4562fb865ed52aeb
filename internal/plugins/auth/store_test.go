package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatekeeper/internal/plugins/users"
	"github.com/keyxmakerx/gatekeeper/internal/testutil"
)

func TestDBStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewDBStore(testutil.NewSQLite(t), 0)
	bob := newStubUser(t, "bob@example.com", "pw")
	a := NewSessionAuth(NewAuth("session_id"), store, &stubFinder{users: []*users.User{bob}})

	sid := a.CreateSession(ctx, bob.ID)
	require.NotEmpty(t, sid)
	assert.Equal(t, 1, store.Mirrored())

	sess, ok, err := store.Load(ctx, sid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bob.ID, sess.UserID)

	user := a.CurrentUser(requestWithSession(sid))
	require.NotNil(t, user)
	assert.Equal(t, bob.ID, user.ID)

	assert.True(t, a.DestroySession(requestWithSession(sid)))
	assert.Empty(t, a.UserIDForSessionID(ctx, sid))
	assert.Equal(t, 0, store.Mirrored())
}

func TestDBStore_LookupReadsTable(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLite(t)
	store := NewDBStore(db, 0)
	a := NewSessionAuth(NewAuth("session_id"), store, &stubFinder{})

	sid := a.CreateSession(ctx, uuid.NewString())
	require.NotEmpty(t, sid)

	// A row removed behind the store's back is gone even though the
	// mirror still holds it.
	_, err := db.ExecContext(ctx, `DELETE FROM user_sessions`)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Mirrored())
	assert.Empty(t, a.UserIDForSessionID(ctx, sid))
}

func TestDBStore_ExpiredRowDeletedOnDiscovery(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLite(t)
	clock := newFakeClock()
	a := NewSessionAuth(NewAuth("session_id"), NewDBStore(db, 30*time.Second), &stubFinder{},
		WithDuration(30*time.Second), WithClock(clock.Now))
	userID := uuid.NewString()

	sid := a.CreateSession(ctx, userID)
	require.NotEmpty(t, sid)

	clock.Advance(29 * time.Second)
	assert.Equal(t, userID, a.UserIDForSessionID(ctx, sid))

	clock.Advance(time.Second)
	assert.Empty(t, a.UserIDForSessionID(ctx, sid))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sessions`).Scan(&n))
	assert.Zero(t, n)
}

func TestDBStore_SavePrunesExpiredMirrorEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewDBStore(testutil.NewSQLite(t), 30*time.Second)
	a := NewSessionAuth(NewAuth("session_id"), store, &stubFinder{},
		WithDuration(30*time.Second), WithClock(clock.Now))

	require.NotEmpty(t, a.CreateSession(ctx, uuid.NewString()))
	clock.Advance(29 * time.Second)
	require.NotEmpty(t, a.CreateSession(ctx, uuid.NewString()))
	assert.Equal(t, 2, store.Mirrored())

	// The first session is now exactly 30s old and expired.
	clock.Advance(time.Second)
	require.NotEmpty(t, a.CreateSession(ctx, uuid.NewString()))
	assert.Equal(t, 2, store.Mirrored())

	clock.Advance(time.Minute)
	require.NotEmpty(t, a.CreateSession(ctx, uuid.NewString()))
	assert.Equal(t, 1, store.Mirrored())
}

func TestDBStore_MissingRow(t *testing.T) {
	ctx := context.Background()
	store := NewDBStore(testutil.NewSQLite(t), 0)

	_, ok, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := store.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	bob := newStubUser(t, "bob@example.com", "pw")
	a := NewSessionAuth(NewAuth("session_id"), NewRedisStore(client, 0), &stubFinder{users: []*users.User{bob}})

	sid := a.CreateSession(ctx, bob.ID)
	require.NotEmpty(t, sid)
	assert.True(t, mr.Exists(sessionKeyPrefix+sid))
	assert.Zero(t, mr.TTL(sessionKeyPrefix+sid))

	user := a.CurrentUser(requestWithSession(sid))
	require.NotNil(t, user)
	assert.Equal(t, bob.ID, user.ID)

	assert.True(t, a.DestroySession(requestWithSession(sid)))
	assert.False(t, mr.Exists(sessionKeyPrefix+sid))
	assert.Empty(t, a.UserIDForSessionID(ctx, sid))
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	a := NewSessionAuth(NewAuth("session_id"), NewRedisStore(client, time.Minute), &stubFinder{},
		WithDuration(time.Minute))
	userID := uuid.NewString()

	sid := a.CreateSession(ctx, userID)
	require.NotEmpty(t, sid)
	assert.Equal(t, time.Minute, mr.TTL(sessionKeyPrefix+sid))
	assert.Equal(t, userID, a.UserIDForSessionID(ctx, sid))

	mr.FastForward(time.Minute)
	assert.Empty(t, a.UserIDForSessionID(ctx, sid))
}

func TestRedisStore_ClockExpiration(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	clock := newFakeClock()
	a := NewSessionAuth(NewAuth("session_id"), NewRedisStore(client, 0), &stubFinder{},
		WithDuration(10*time.Second), WithClock(clock.Now))
	userID := uuid.NewString()

	sid := a.CreateSession(ctx, userID)
	clock.Advance(9 * time.Second)
	assert.Equal(t, userID, a.UserIDForSessionID(ctx, sid))
	clock.Advance(time.Second)
	assert.Empty(t, a.UserIDForSessionID(ctx, sid))
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	// Nothing listens on port 1.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	a := NewSessionAuth(NewAuth("session_id"), NewRedisStore(client, 0), &stubFinder{})

	assert.Empty(t, a.CreateSession(ctx, uuid.NewString()))
	assert.Empty(t, a.UserIDForSessionID(ctx, "anything"))
}
