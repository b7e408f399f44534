package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("secret", "gidrec", "gidrec")

	token, err := a.GenerateToken(42, time.Hour)
	require.NoError(t, err)

	claims, err := a.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestJWTRejects(t *testing.T) {
	a := NewJWTAuthenticator("secret", "gidrec", "gidrec")

	expired, err := a.GenerateToken(42, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTAuthenticator("other", "gidrec", "gidrec").GenerateToken(42, time.Hour)
	require.NoError(t, err)

	otherAud, err := NewJWTAuthenticator("secret", "billing", "gidrec").GenerateToken(42, time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "42", Issuer: "gidrec", Audience: jwt.ClaimStrings{"gidrec"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice", Issuer: "gidrec", Audience: jwt.ClaimStrings{"gidrec"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":     "not.a.token",
		"expired":     expired,
		"wrong key":   otherKey,
		"wrong aud":   otherAud,
		"no expiry":   noExp,
		"non numeric": badSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := a.ValidateAccessToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
