package services

import (
	"testing"
	"time"

	"github.com/amirphl/Kusanagi/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func newTestTokenService(t *testing.T, ttl time.Duration) TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecretKey, ttl, "kusanagi-test", "kusanagi-api")
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	_, err := NewTokenService("too-short", time.Hour, "iss", "aud")
	require.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token, err := svc.GenerateAccessToken(42, 7, models.SalespersonRoleManager)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, uint(7), claims.TenantID)
	assert.Equal(t, models.SalespersonRoleManager, claims.Role)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not a jwt", token: "definitely-not-a-jwt"},
		{name: "truncated", token: "eyJhbGciOiJIUzI1NiJ9.e30"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tc.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", time.Hour, "kusanagi-test", "kusanagi-api")
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(1, 1, models.SalespersonRoleSales)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestTokenService(t, time.Nanosecond)

	token, err := svc.GenerateAccessToken(1, 1, models.SalespersonRoleSales)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token, err := svc.GenerateAccessToken(1, 1, models.SalespersonRoleAdmin)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(token))
	assert.True(t, svc.IsTokenRevoked(token))

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
