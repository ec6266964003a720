package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovialab/cliniguard-server/internal/model"
)

func TestJWT_SessionRoundTrip(t *testing.T) {
	manager := NewJWT("test-secret")

	tokenString, err := manager.GenerateSessionToken(42, model.RoleClinician, "doc@clinic.test")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	identity, err := manager.ParseSessionToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.AccountID)
	assert.Equal(t, model.RoleClinician, identity.Role)
	assert.Equal(t, "doc@clinic.test", identity.Email)
}

func TestJWT_ChallengeRoundTrip(t *testing.T) {
	manager := NewJWT("test-secret")

	tokenString, err := manager.GenerateChallengeToken(7)
	require.NoError(t, err)

	accountID, err := manager.ParseChallengeToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, int64(7), accountID)
}

func TestJWT_TypeMismatch(t *testing.T) {
	manager := NewJWT("test-secret")

	session, err := manager.GenerateSessionToken(1, model.RolePatient, "p@clinic.test")
	require.NoError(t, err)
	challenge, err := manager.GenerateChallengeToken(1)
	require.NoError(t, err)

	_, err = manager.ParseChallengeToken(session)
	require.Error(t, err)

	_, err = manager.ParseSessionToken(challenge)
	require.Error(t, err)
}

func TestJWT_WrongSecret(t *testing.T) {
	tokenString, err := NewJWT("secret-a").GenerateSessionToken(1, model.RolePatient, "p@clinic.test")
	require.NoError(t, err)

	_, err = NewJWT("secret-b").ParseSessionToken(tokenString)
	require.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	now := time.Now()
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
		AccountID: 1,
		TokenType: typeSession,
	})
	tokenString, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewJWT("test-secret").ParseSessionToken(tokenString)
	require.Error(t, err)
}

func TestJWT_WrongSigningMethod(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AccountID: 1, TokenType: typeSession})
	tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWT("test-secret").ParseSessionToken(tokenString)
	require.Error(t, err)
}
