package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, userID uuid.UUID, userName, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserName: userName,
		Role:     role,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParse_RoundTrip(t *testing.T) {
	userID := uuid.New()
	parser := NewParser("secret")

	principal, err := parser.Parse(signToken(t, "secret", userID, "alice", RoleTrader))
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, "alice", principal.UserName)
	assert.False(t, principal.ReadOnly())

	viewer, err := parser.Parse(signToken(t, "secret", uuid.New(), "eve", RoleViewer))
	require.NoError(t, err)
	assert.True(t, viewer.ReadOnly())
}

func TestParse_RejectsWrongSecret(t *testing.T) {
	parser := NewParser("secret")
	_, err := parser.Parse(signToken(t, "other", uuid.New(), "alice", RoleTrader))
	assert.Error(t, err)
}

func TestParse_RejectsGarbage(t *testing.T) {
	parser := NewParser("secret")
	_, err := parser.Parse("not-a-token")
	assert.Error(t, err)
}
