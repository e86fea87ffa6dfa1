package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	token, err := tm.GenerateAccessToken("m1", "m1@test.com", domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "m1", claims.UserID)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour)
		token, err := other.GenerateAccessToken("m1", "", domain.RoleStandard)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := &tokenManager{secret: []byte(testSecret), expiry: time.Minute, now: func() time.Time {
			return time.Now().Add(-2 * time.Hour)
		}}
		token, err := expired.GenerateAccessToken("m1", "", domain.RoleStandard)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongType", func(t *testing.T) {
		claims := UserClaims{
			UserID: "m1",
			Type:   "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{audience},
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
