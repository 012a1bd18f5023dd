package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisDenylist(t *testing.T) (*RedisDenylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDenylist(client), mr
}

func TestRedisDenylist_RevokeUntilExpiry(t *testing.T) {
	d, mr := newMiniredisDenylist(t)
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))

	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)

	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisDenylist_SkipsExpired(t *testing.T) {
	d, mr := newMiniredisDenylist(t)

	require.NoError(t, d.Revoke(context.Background(), "jti-2", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(denylistKeyPrefix+"jti-2"))
}

func TestRedisDenylist_WithTokenManager(t *testing.T) {
	d, _ := newMiniredisDenylist(t)
	tm := NewTokenManager("secret", time.Hour, time.Hour, WithDenylist(d))

	issued, err := tm.Issue("u", "n", "user", "login")
	require.NoError(t, err)

	claims, err := tm.Authenticate(context.Background(), issued.Token)
	require.NoError(t, err)
	require.NoError(t, tm.Revoke(context.Background(), claims))

	_, err = tm.Authenticate(context.Background(), issued.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)
}
