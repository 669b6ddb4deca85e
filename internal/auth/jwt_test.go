package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "operator_ops", claims.Subject)
}

func TestValidateRejects(t *testing.T) {
	expired, err := GenerateToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(secret, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	token, err := GenerateToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(strings.Repeat("x", 32), token)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ValidateToken(secret, unsigned)
	assert.Error(t, err)
}

func TestSecretRequirements(t *testing.T) {
	_, err := GenerateToken("", "ops", time.Hour)
	assert.ErrorIs(t, err, ErrSecretNotConfigured)

	_, err = GenerateToken("short", "ops", time.Hour)
	assert.Error(t, err)

	_, err = GenerateToken(secret, "", time.Hour)
	assert.Error(t, err)
}
