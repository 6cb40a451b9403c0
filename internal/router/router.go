package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ecommerce-auth/internal/auth"
	"github.com/iliyamo/ecommerce-auth/internal/config"
	"github.com/iliyamo/ecommerce-auth/internal/handler"
	"github.com/iliyamo/ecommerce-auth/internal/middleware"
	"github.com/iliyamo/ecommerce-auth/internal/token"
)

// Register wires every HTTP route. Unauthenticated auth operations live under
// /auth, authenticated ones under /v1, and user administration under
// /v1/admin behind the admin role.
func Register(e *echo.Echo, a *handler.AuthHandler, tokens *token.Issuer, revoked auth.RevocationLedger, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	g := e.Group("/auth")
	if rdb != nil {
		// Bucket keys fall back to the client IP here because these routes
		// run before any identity is established.
		g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}
	g.POST("/register", a.Register)
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(tokens, revoked))
	v1.GET("/me", a.Me)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireRole("admin"))
	admin.GET("/users", a.ListUsers)
	admin.GET("/users/:id", a.GetUser)
	admin.PATCH("/users/:id", a.UpdateUser)
	admin.DELETE("/users/:id", a.DeleteUser)
}
