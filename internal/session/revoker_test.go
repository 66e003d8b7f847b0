package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRevoker(t *testing.T) (*RedisRevoker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRevoker(client, time.Hour), mr
}

func TestRedisRevoker_TokenExpires(t *testing.T) {
	r, mr := newRedisRevoker(t)
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevoker_UserCutoffOnlyMovesForward(t *testing.T) {
	r, _ := newRedisRevoker(t)
	ctx := context.Background()
	first := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.RevokeUser(ctx, "u1", first))
	require.NoError(t, r.RevokeUser(ctx, "u1", first.Add(-time.Minute)))

	got, err := r.RevokedAfter(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Equal(first))

	none, err := r.RevokedAfter(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestMemoryRevoker(t *testing.T) {
	r := NewMemoryRevoker()
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, r.Revoke(ctx, "jti-2", 0))

	revoked, _ := r.IsRevoked(ctx, "jti-1")
	assert.True(t, revoked)
	revoked, _ = r.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = r.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)

	require.NoError(t, r.RevokeUser(ctx, "u1", now))
	require.NoError(t, r.RevokeUser(ctx, "u1", now.Add(-time.Hour)))
	got, _ := r.RevokedAfter(ctx, "u1")
	assert.True(t, got.Equal(now))
}
