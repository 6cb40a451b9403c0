package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(accessTTL, refreshTTL time.Duration) *Issuer {
	return New("access-secret-for-tests", "refresh-secret-for-tests", accessTTL, refreshTTL)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	iss := newTestIssuer(time.Hour, 7*24*time.Hour)

	raw, exp, err := iss.SignAccess("u-1", "alice@example.com", "user")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, ok := iss.VerifyAccess(raw)
	require.True(t, ok)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Username)
	assert.Equal(t, "user", claims.Role)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	iss := newTestIssuer(time.Hour, 7*24*time.Hour)

	raw, _, err := iss.SignRefresh("sess-1", "u-1", "alice@example.com", "admin")
	require.NoError(t, err)

	claims, ok := iss.VerifyRefresh(raw)
	require.True(t, ok)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenClassesNeverCrossAccepted(t *testing.T) {
	iss := newTestIssuer(time.Hour, 7*24*time.Hour)

	access, _, err := iss.SignAccess("u-1", "alice@example.com", "user")
	require.NoError(t, err)
	refresh, _, err := iss.SignRefresh("sess-1", "u-1", "alice@example.com", "user")
	require.NoError(t, err)

	_, ok := iss.VerifyRefresh(access)
	assert.False(t, ok, "access token must not verify as refresh")
	_, ok = iss.VerifyAccess(refresh)
	assert.False(t, ok, "refresh token must not verify as access")
}

func TestExpiredTokensRejected(t *testing.T) {
	iss := newTestIssuer(-time.Minute, -time.Minute)

	access, _, err := iss.SignAccess("u-1", "alice@example.com", "user")
	require.NoError(t, err)
	refresh, _, err := iss.SignRefresh("sess-1", "u-1", "alice@example.com", "user")
	require.NoError(t, err)

	_, ok := iss.VerifyAccess(access)
	assert.False(t, ok)
	_, ok = iss.VerifyRefresh(refresh)
	assert.False(t, ok)
}

func TestMalformedAndForeignTokensRejected(t *testing.T) {
	iss := newTestIssuer(time.Hour, 7*24*time.Hour)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, ok := iss.VerifyAccess(raw)
		assert.False(t, ok, "raw=%q", raw)
	}

	// Same claims, different secrets.
	other := New("other-access", "other-refresh", time.Hour, time.Hour)
	foreign, _, err := other.SignAccess("u-1", "alice@example.com", "user")
	require.NoError(t, err)
	_, ok := iss.VerifyAccess(foreign)
	assert.False(t, ok)
}
