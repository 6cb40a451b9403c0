package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecommerce-auth/internal/auth"
)

const requestTimeout = 10 * time.Second

// AuthHandler exposes the session engine over plain HTTP. The message bus
// carries the same operations for service-to-service calls; this surface
// exists for direct clients and for the e-mail verification link.
type AuthHandler struct {
	Svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

// fail maps engine errors onto HTTP responses with safe public messages.
func fail(c echo.Context, err error) error {
	return c.JSON(auth.StatusFor(err), echo.Map{"error": auth.PublicMessage(err)})
}

func timeoutCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Register creates a pending account and sends the verification e-mail.
func (h *AuthHandler) Register(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.Register(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// VerifyEmail consumes the link from the verification e-mail and always
// renders an HTML page, even for bad tokens.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := timeoutCtx(c)
	defer cancel()

	page := h.Svc.VerifyEmail(ctx, c.QueryParam("token"))
	return c.HTML(http.StatusOK, page)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}
	req.IPAddress = c.RealIP()
	req.UserAgent = c.Request().UserAgent()

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	pair, err := h.Svc.Login(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req auth.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	req.IPAddress = c.RealIP()
	req.UserAgent = c.Request().UserAgent()

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.Refresh(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req auth.LogoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	req.IPAddress = c.RealIP()
	req.UserAgent = c.Request().UserAgent()

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.Logout(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req auth.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.ForgotPassword(ctx, req.Username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req auth.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Token == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/new_password required"})
	}

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.ResetPassword(ctx, req.Token, req.NewPassword)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Me returns the profile behind the access token that JWTAuth validated.
func (h *AuthHandler) Me(c echo.Context) error {
	raw, _ := c.Get("access_token").(string)

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	profile, err := h.Svc.Me(ctx, raw)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// ----- admin endpoints -----

func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := timeoutCtx(c)
	defer cancel()

	users, err := h.Svc.GetAllUsers(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AuthHandler) GetUser(c echo.Context) error {
	ctx, cancel := timeoutCtx(c)
	defer cancel()

	profile, err := h.Svc.GetUserByID(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) UpdateUser(c echo.Context) error {
	var req auth.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.ID = c.Param("id")

	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.UpdateUser(ctx, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := timeoutCtx(c)
	defer cancel()

	resp, err := h.Svc.DeleteUser(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
