package auth

import "time"

// Request and response payloads for each bus operation.  The JSON field
// names are shared wire vocabulary with the gateway and the other
// services; "acceptToken" (not accessToken) is the historical name of
// the access token field on the request side.

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phoneNumber,omitempty"`
	Address  string `json:"address,omitempty"`
}

type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

type RefreshRequest struct {
	AcceptToken  string `json:"acceptToken"`
	RefreshToken string `json:"refreshToken"`
	IPAddress    string `json:"ipAddress,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
}

type LogoutRequest struct {
	AcceptToken  string `json:"acceptToken"`
	RefreshToken string `json:"refreshToken"`
	IPAddress    string `json:"ipAddress,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
}

type ForgotPasswordRequest struct {
	Username string `json:"username"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type DeleteUserRequest struct {
	ID string `json:"id"`
}

type UpdateUserRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phoneNumber,omitempty"`
	Address string `json:"address,omitempty"`
	Role    string `json:"role,omitempty"`
}

// MessageResponse is the generic success payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenPair is returned by login; the raw refresh token goes back to
// the caller while only its hash is persisted.
type TokenPair struct {
	AcceptToken  string `json:"acceptToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries the (possibly unchanged) access token.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message,omitempty"`
	StillValid  bool   `json:"stillValid,omitempty"`
}

// Profile is a principal without credential material.
type Profile struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	Name            string    `json:"name,omitempty"`
	Phone           string    `json:"phoneNumber,omitempty"`
	Address         string    `json:"address,omitempty"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
