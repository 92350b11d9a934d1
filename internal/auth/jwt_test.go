package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-32-chars-long!!!!!"
	testRefreshSecret = "refresh-secret-32-chars-long!!!!"
)

func newTestJWT() *JWTManager {
	return NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour, time.Hour)
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	mgr := newTestJWT()

	t.Run("generate and validate access token", func(t *testing.T) {
		pair, tokenID, err := mgr.GenerateTokenPair("user-123", "test@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEmpty(t, tokenID)
		assert.Equal(t, "bearer", pair.TokenType)
		assert.Equal(t, int64(900), pair.ExpiresIn)

		claims, err := mgr.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID)
		assert.Equal(t, "test@example.com", claims.Email)
	})

	t.Run("generate and validate refresh token", func(t *testing.T) {
		pair, tokenID, err := mgr.GenerateTokenPair("user-456", "user@example.com")
		require.NoError(t, err)

		claims, err := mgr.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "user-456", claims.UserID)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, tokenID, claims.TokenID)
	})

	t.Run("invalid token fails validation", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("invalid-token")
		assert.Error(t, err)
	})

	t.Run("access token cant validate as refresh", func(t *testing.T) {
		pair, _, _ := mgr.GenerateTokenPair("user-789", "x@x.com")
		_, err := mgr.ValidateRefreshToken(pair.AccessToken)
		assert.Error(t, err)
	})

	t.Run("expired token fails", func(t *testing.T) {
		shortMgr := NewJWTManager(testAccessSecret, testRefreshSecret, -1*time.Second, -1*time.Second, time.Hour)
		pair, _, err := shortMgr.GenerateTokenPair("user-exp", "exp@test.com")
		require.NoError(t, err)

		_, err = shortMgr.ValidateAccessToken(pair.AccessToken)
		assert.Error(t, err)
	})
}

func TestJWTManager_PasswordResetToken(t *testing.T) {
	mgr := newTestJWT()

	t.Run("round trip", func(t *testing.T) {
		token, err := mgr.GeneratePasswordResetToken("reset@example.com")
		require.NoError(t, err)

		email, err := mgr.ValidatePasswordResetToken(token)
		require.NoError(t, err)
		assert.Equal(t, "reset@example.com", email)
	})

	t.Run("reset token is not an access token", func(t *testing.T) {
		token, err := mgr.GeneratePasswordResetToken("reset@example.com")
		require.NoError(t, err)

		_, err = mgr.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("access token is not a reset token", func(t *testing.T) {
		pair, _, err := mgr.GenerateTokenPair("user-1", "a@example.com")
		require.NoError(t, err)

		_, err = mgr.ValidatePasswordResetToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrResetTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTManager(testAccessSecret, testRefreshSecret, time.Minute, time.Hour, -time.Second)
		token, err := expired.GeneratePasswordResetToken("late@example.com")
		require.NoError(t, err)

		_, err = mgr.ValidatePasswordResetToken(token)
		assert.ErrorIs(t, err, ErrResetTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := mgr.ValidatePasswordResetToken("not-a-token")
		assert.ErrorIs(t, err, ErrResetTokenInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("another-access-secret-32-chars!!", testRefreshSecret, time.Minute, time.Hour, time.Hour)
		token, err := other.GeneratePasswordResetToken("x@example.com")
		require.NoError(t, err)

		_, err = mgr.ValidatePasswordResetToken(token)
		assert.ErrorIs(t, err, ErrResetTokenInvalid)
	})
}
