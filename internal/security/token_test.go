package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_AccessToken(t *testing.T) {
	tm := NewTokenManager(secret)

	token, err := tm.GenerateAccessToken(42, []string{"member"}, time.Hour)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, []string{"member"}, claims.Roles)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenManager_ServiceToken(t *testing.T) {
	tm := NewTokenManager(secret)

	token, err := tm.GenerateServiceToken("overdue-trigger", time.Hour)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeService, claims.Type)
	assert.Zero(t, claims.UserID)
	assert.Equal(t, "overdue-trigger", claims.Subject)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager(secret)

	t.Run("expired", func(t *testing.T) {
		token, err := tm.GenerateAccessToken(42, nil, -time.Minute)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Equal(t, ErrExpiredToken, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenManager("another-secret-another-secret-00").GenerateAccessToken(42, nil, time.Hour)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := UserClaims{
			UserID: 42,
			Type:   TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.Equal(t, ErrInvalidToken, err)
	})
}
