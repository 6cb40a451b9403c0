package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecommerce-auth/internal/auth"
	"github.com/iliyamo/ecommerce-auth/internal/token"
	"github.com/iliyamo/ecommerce-auth/internal/utils"
)

// JWTAuth validates the Bearer access token, rejects tokens on the
// revocation ledger and injects user_id/role into the request context
// for downstream middleware and handlers.
func JWTAuth(tokens *token.Issuer, revoked auth.RevocationLedger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, ok := tokens.VerifyAccess(raw)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// A signed, unexpired token can still be on the deny-list
			// after logout or an admin revoke.
			isRevoked, err := revoked.IsRevoked(c.Request().Context(), utils.HashToken(raw))
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token check failed"})
			}
			if isRevoked {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
			}

			c.Set("user_id", claims.UserID)
			c.Set("role", claims.Role)
			c.Set("access_token", raw)
			return next(c)
		}
	}
}
