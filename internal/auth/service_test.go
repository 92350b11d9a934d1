package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(newTestJWT(), client), mr
}

func TestService_GenerateTokensStoresRefreshID(t *testing.T) {
	svc, mr := setupService(t)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, "user-1", "u1@example.com")
	require.NoError(t, err)

	claims, err := svc.JWT().ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, mr.Exists(refreshKey("user-1", claims.TokenID)))
	assert.Positive(t, mr.TTL(refreshKey("user-1", claims.TokenID)))
}

func TestService_RefreshRotates(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, "user-2", "u2@example.com")
	require.NoError(t, err)

	next, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)

	access, err := svc.ValidateAccessToken(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u2@example.com", access.Email)

	// The consumed token cannot be replayed.
	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestService_RevokeAll(t *testing.T) {
	svc, mr := setupService(t)
	ctx := context.Background()

	first, err := svc.GenerateTokens(ctx, "user-3", "u3@example.com")
	require.NoError(t, err)
	_, err = svc.GenerateTokens(ctx, "user-3", "u3@example.com")
	require.NoError(t, err)
	_, err = svc.GenerateTokens(ctx, "other", "o@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "user-3"))

	_, err = svc.RefreshTokens(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "refresh:other:")
}

func TestService_RedisDown(t *testing.T) {
	svc, mr := setupService(t)
	mr.Close()

	_, err := svc.GenerateTokens(context.Background(), "user-4", "u4@example.com")
	assert.Error(t, err)
}
