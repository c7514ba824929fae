package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessTTL, refreshTTL time.Duration) *JWTManager {
	return NewJWTManager("access-secret", "refresh-secret", accessTTL, refreshTTL)
}

func TestJWTManager_AccessTokenRoundTrip(t *testing.T) {
	m := newTestManager(time.Minute, time.Hour)

	token, exp, err := m.GenerateAccessToken("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := m.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestJWTManager_RefreshTokenCarriesJTI(t *testing.T) {
	m := newTestManager(time.Minute, time.Hour)

	token, jti, _, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := m.ParseRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.JTI())
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)

	// Each refresh token gets a fresh jti
	_, jti2, _, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, jti, jti2)
}

func TestJWTManager_TypeConfusionRejected(t *testing.T) {
	m := newTestManager(time.Minute, time.Hour)

	access, _, err := m.GenerateAccessToken("user-1")
	require.NoError(t, err)
	refresh, _, _, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	// An access token must not pass as a refresh token or vice versa,
	// even though both are valid JWTs.
	_, err = m.ParseRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = m.ParseAccessToken(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	m := newTestManager(-time.Minute, -time.Minute)

	access, _, err := m.GenerateAccessToken("user-1")
	require.NoError(t, err)
	_, err = m.ParseAccessToken(access)
	assert.ErrorIs(t, err, ErrTokenExpired)

	refresh, jti, _, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	_, err = m.ParseRefreshToken(refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Logout still needs the claims of an expired token
	claims, err := m.ParseRefreshTokenAllowExpired(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, jti, claims.JTI())
}

func TestJWTManager_TamperedTokenRejected(t *testing.T) {
	m := newTestManager(time.Minute, time.Hour)

	token, _, err := m.GenerateAccessToken("user-1")
	require.NoError(t, err)

	_, err = m.ParseAccessToken(token + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Signed with a different key
	other := NewJWTManager("other-secret", "other-secret", time.Minute, time.Hour)
	stolen, _, err := other.GenerateAccessToken("user-1")
	require.NoError(t, err)
	_, err = m.ParseAccessToken(stolen)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
