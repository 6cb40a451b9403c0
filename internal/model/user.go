package model

import "time"

// User represents a registered principal as stored in the `users`
// table.  The email doubles as the login handle.  PasswordHash is NULL
// for externally-authenticated accounts (provider != "local").
//
// Verification and reset tokens are single-purpose opaque strings with
// their own expiry columns; at most one of each is outstanding at any
// time and both are cleared on successful use.
type User struct {
	ID                     string     // users.id (uuid)
	Email                  string     // users.email (unique login handle)
	PasswordHash           *string    // users.password_hash (nullable)
	Provider               string     // users.provider ("local" unless federated)
	Role                   string     // users.role ("user" or "admin")
	Name                   string     // users.name
	Phone                  string     // users.phone
	Address                string     // users.address
	IsEmailVerified        bool       // users.is_email_verified
	EmailVerificationToken *string    // users.email_verification_token (nullable)
	EmailVerificationExp   *time.Time // users.email_verification_expires_at (nullable)
	FailedLoginAttempts    int        // users.failed_login_attempts
	LockedUntil            *time.Time // users.locked_until (nullable)
	ResetToken             *string    // users.reset_token (nullable)
	ResetTokenExp          *time.Time // users.reset_token_expires_at (nullable)
	CreatedAt              time.Time  // users.created_at
	UpdatedAt              time.Time  // users.updated_at
}

// UserSession models a row in `user_sessions`.  A session anchors one
// issued refresh token: only the SHA-256 hash of the raw token is
// stored, together with the device fingerprint captured at login.
// Sessions reference their owner by id only; there is no back-pointer
// from User.
type UserSession struct {
	ID               uint64    // user_sessions.id
	SessionID        string    // user_sessions.session_id (uuid, embedded in the refresh token)
	UserID           string    // user_sessions.user_id
	RefreshTokenHash string    // user_sessions.refresh_token_hash (sha-256 hex)
	IPAddress        string    // user_sessions.ip_address
	UserAgent        string    // user_sessions.user_agent
	ExpiresAt        time.Time // user_sessions.expires_at
	IsRevoked        bool      // user_sessions.is_revoked
	CreatedAt        time.Time // user_sessions.created_at
}

// RevokedToken is one entry of the deny-list in `revoked_tokens`:
// tokens that are cryptographically still valid but must no longer be
// honored.  Append-only; a periodic sweep prunes entries older than the
// retention window.
type RevokedToken struct {
	ID        uint64    // revoked_tokens.id
	TokenHash string    // revoked_tokens.token_hash (sha-256 hex)
	CreatedAt time.Time // revoked_tokens.created_at
}
