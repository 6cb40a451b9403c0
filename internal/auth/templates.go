package auth

import _ "embed"

// Static pages rendered by the email verification endpoint.  The three
// outcomes (success, expired, unknown token) deliberately share one
// lookup-then-check code path so the response body is the only thing
// that differs between them.

//go:embed templates/verify-success.html
var verifySuccessHTML string

//go:embed templates/token-expired.html
var tokenExpiredHTML string

//go:embed templates/invalid-token.html
var invalidTokenHTML string
