package auth

import "errors"

// Expected, user-facing outcomes of the auth flows.  These are returned
// as values and mapped to transport status codes at the edges; anything
// not listed here is an internal fault that is logged in detail and
// reported to the caller generically.
var (
	// ErrInvalidCredentials covers both "no such identity" and "wrong
	// password"; the two are deliberately indistinguishable to avoid
	// identity enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified rejects login before the emailed verification
	// token has been used.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountLocked is returned while a lockout deadline is in the
	// future, regardless of whether the presented password is correct.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrDuplicateIdentity rejects registration for an already-verified
	// identity.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrVerificationPending rejects re-registration while a live
	// verification token is outstanding, so the token cannot be
	// re-triggered by spam.
	ErrVerificationPending = errors.New("verification already pending")
	// ErrInvalidOrExpiredToken covers verification, reset and access
	// tokens presented outside the refresh flow.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidRefreshToken covers bad signature, expiry, malformed
	// payload and stored-hash mismatch on the refresh path.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrSessionNotFound is returned when no usable session backs a
	// structurally valid refresh token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFingerprintMismatch rejects logout from an origin other than
	// the one the session was opened from.
	ErrFingerprintMismatch = errors.New("ip address or user-agent mismatch")
	// ErrTokenRevoked is returned when a presented token is on the
	// revocation ledger.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrResetAlreadyPending rejects a reset request while an unexpired
	// reset token is outstanding.
	ErrResetAlreadyPending = errors.New("password reset already pending")
	// ErrNotFound covers admin lookups of unknown principals.
	ErrNotFound = errors.New("user not found")
)
