package impersonate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func testSession(tenantID int64) Session {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	return Session{
		ID:        "sess-1",
		TenantID:  tenantID,
		StartedBy: 99,
		Reason:    "ticket",
		StartedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestRedisStorePutIsExclusive(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 99, testSession(12), time.Hour))
	err := store.Put(ctx, 99, testSession(13), time.Hour)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	// A different user is unaffected.
	require.NoError(t, store.Put(ctx, 100, testSession(12), time.Hour))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	want := testSession(12)
	require.NoError(t, store.Put(ctx, 99, want, time.Hour))

	got, ok, err := store.Get(ctx, 99)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.TenantID, got.TenantID)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Delete(ctx, 99))
	_, ok, err = store.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreKeyTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 99, testSession(12), time.Hour))
	mr.FastForward(time.Hour + time.Second)

	_, ok, err := store.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok, "expired key should vanish server-side")

	// The slot can be taken again once the TTL elapsed.
	require.NoError(t, store.Put(ctx, 99, testSession(13), time.Hour))
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	live := testSession(12)
	expired := testSession(13)
	expired.ID = "sess-2"
	expired.ExpiresAt = live.StartedAt.Add(-time.Minute)

	require.NoError(t, store.Put(ctx, 1, live, time.Hour))
	require.NoError(t, store.Put(ctx, 2, expired, time.Hour))

	removed := store.SweepExpired(live.StartedAt)
	assert.Equal(t, 1, removed)

	_, ok, _ := store.Get(ctx, 1)
	assert.True(t, ok)
	_, ok, _ = store.Get(ctx, 2)
	assert.False(t, ok)
}
