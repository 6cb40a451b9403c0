package auth

import (
	"errors"
	"net/http"

	"github.com/iliyamo/ecommerce-auth/internal/crypto"
)

// StatusFor maps an engine error to the HTTP-style status code carried
// in bus error payloads and HTTP responses.  Unknown errors are
// internal faults and come back as 500 with a generic message; the
// detail stays in the server log.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrEmailNotVerified),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrFingerprintMismatch),
		errors.Is(err, ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrVerificationPending),
		errors.Is(err, ErrInvalidOrExpiredToken),
		errors.Is(err, ErrResetAlreadyPending),
		errors.Is(err, crypto.ErrCryptoFailure):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the caller-facing text for an error.  Expected
// outcomes surface their own wording; internal faults collapse into a
// generic message.
func PublicMessage(err error) string {
	if StatusFor(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
