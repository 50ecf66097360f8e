package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRefreshTokenStoreClaimOnce(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRefreshTokenStore(client, "")
	ctx := context.Background()

	first, err := store.Claim(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Claim(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	assert.True(t, mr.Exists("refresh_used:jti-1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("refresh_used:jti-1"))
	again, err := store.Claim(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again, "the marker expires with the token")
}

func TestRefreshTokenStoreRejectsEmptyID(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRefreshTokenStore(client, "custom")

	_, err := store.Claim(context.Background(), " ", time.Minute)
	assert.Error(t, err)
}

func TestRefreshTokenStoreSurfacesRedisErrors(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRefreshTokenStore(client, "")
	mr.Close()

	_, err := store.Claim(context.Background(), "jti", time.Minute)
	assert.Error(t, err)
}
