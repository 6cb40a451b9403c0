package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the SHA-256 hex digest of a raw token string.
// Sessions and the revocation ledger store only this digest, so a
// leaked database row cannot be replayed as a live token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
