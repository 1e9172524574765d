package utils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	SetSecret("test-secret")

	token, err := GenerateToken("64b7f0c2a1b2c3d4e5f60718", "admin")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", claims.ID)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	SetSecret("test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaim{
		ID:             "x",
		Role:           "user",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ValidateToken(signed)
	assert.Error(t, err)

	token, err := GenerateToken("x", "user")
	require.NoError(t, err)
	SetSecret("rotated")
	_, err = ValidateToken(token)
	assert.Error(t, err, "signature no longer matches")

	_, err = ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, VerifyPassword(hash, "s3cret"))
	assert.Error(t, VerifyPassword(hash, "wrong"))
}
