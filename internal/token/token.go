// Package token signs and verifies the two bearer token classes: a
// short-lived access token and a long-lived refresh token that embeds
// the session id it was issued for.  The two classes use distinct
// configured secrets and are never cross-accepted.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.  SessionID binds the
// token to one persisted session row.
type RefreshClaims struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies both token classes.  The zero value is
// unusable; construct with New.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// RefreshTTL reports the configured refresh lifetime; sessions expire
// together with the refresh token they anchor.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// SignAccess returns a signed access token and its expiry.
func (i *Issuer) SignAccess(userID, username, role string) (string, time.Time, error) {
	exp := time.Now().UTC().Add(i.accessTTL)
	claims := AccessClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SignRefresh returns a signed refresh token bound to sessionID and its
// expiry.
func (i *Issuer) SignRefresh(sessionID, userID, username, role string) (string, time.Time, error) {
	exp := time.Now().UTC().Add(i.refreshTTL)
	claims := RefreshClaims{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess parses and validates an access token.  Any failure (bad
// signature, wrong class, expired, malformed) yields ok=false; errors
// never cross this boundary.
func (i *Issuer) VerifyAccess(raw string) (*AccessClaims, bool) {
	claims := &AccessClaims{}
	if !i.verify(raw, claims, i.accessSecret) {
		return nil, false
	}
	return claims, true
}

// VerifyRefresh parses and validates a refresh token.
func (i *Issuer) VerifyRefresh(raw string) (*RefreshClaims, bool) {
	claims := &RefreshClaims{}
	if !i.verify(raw, claims, i.refreshSecret) {
		return nil, false
	}
	if claims.SessionID == "" {
		return nil, false
	}
	return claims, true
}

func (i *Issuer) verify(raw string, claims jwt.Claims, secret []byte) bool {
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	return err == nil && tok.Valid
}
