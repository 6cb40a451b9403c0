// Package auth implements the authentication and session lifecycle
// engine: registration with email verification, login with lockout,
// token refresh, revocation and password reset.  The engine is
// request-scoped and stateless between calls; all durable state lives
// behind the store interfaces.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ecommerce-auth/internal/model"
	"github.com/iliyamo/ecommerce-auth/internal/repository"
	"github.com/iliyamo/ecommerce-auth/internal/token"
	"github.com/iliyamo/ecommerce-auth/internal/utils"
)

// UserStore is the credential store: persisted principal records with
// verification/reset token state and lockout counters.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByVerificationToken(ctx context.Context, tok string) (model.User, error)
	GetByResetToken(ctx context.Context, tok string) (model.User, error)
	GetAll(ctx context.Context) ([]model.User, error)
	ReissueVerification(ctx context.Context, id, passwordHash, tok string, exp time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	SetResetToken(ctx context.Context, id, tok string, exp time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, name, phone, address, role string) error
	Delete(ctx context.Context, id string) error
}

// SessionStore persists per-login sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.UserSession) error
	GetBySessionID(ctx context.Context, sessionID string) (model.UserSession, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteForUser(ctx context.Context, userID string) error
}

// RevocationLedger is the append-only deny-list of token hashes.
type RevocationLedger interface {
	Add(ctx context.Context, tokenHash string) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// Mailer dispatches templated messages to an identity's email address.
type Mailer interface {
	SendVerification(ctx context.Context, to, tok string) error
	SendPasswordReset(ctx context.Context, to, tok string) error
}

// Options are the policy knobs of the engine, copied out of the global
// config at construction so the flows never read scattered literals.
type Options struct {
	BcryptCost         int
	LoginMaxAttempts   int
	LockoutDuration    time.Duration
	VerifyTokenTTL     time.Duration
	ResetTokenTTL      time.Duration
	EnforceFingerprint bool // require ip/ua match on refresh; logout always requires it
}

// Service wires the stores, the token issuer and the mailer into the
// auth flows.
type Service struct {
	opts     Options
	users    UserStore
	sessions SessionStore
	revoked  RevocationLedger
	mailer   Mailer
	tokens   *token.Issuer
	now      func() time.Time
}

func NewService(opts Options, users UserStore, sessions SessionStore, revoked RevocationLedger, mailer Mailer, tokens *token.Issuer) *Service {
	return &Service{
		opts:     opts,
		users:    users,
		sessions: sessions,
		revoked:  revoked,
		mailer:   mailer,
		tokens:   tokens,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a pending-verification principal, or reissues the
// verification token when the previous one has expired.  A live token
// is never replaced: repeated registration cannot be used to spam or
// enumerate verification tokens.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (MessageResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Username))

	hash, err := utils.HashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("hash password: %w", err)
	}

	verifToken := uuid.NewString()
	exp := s.now().Add(s.opts.VerifyTokenTTL)

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsEmailVerified {
			return MessageResponse{}, ErrDuplicateIdentity
		}
		if existing.EmailVerificationExp != nil && existing.EmailVerificationExp.After(s.now()) {
			return MessageResponse{}, ErrVerificationPending
		}
		// Expired pending registration: overwrite password and token.
		if err := s.users.ReissueVerification(ctx, existing.ID, hash, verifToken, exp); err != nil {
			return MessageResponse{}, fmt.Errorf("reissue verification: %w", err)
		}
		if err := s.mailer.SendVerification(ctx, email, verifToken); err != nil {
			return MessageResponse{}, fmt.Errorf("send verification mail: %w", err)
		}
		return MessageResponse{Message: "A new verification token has been sent to your email."}, nil

	case errors.Is(err, repository.ErrNotFound):
		u := &model.User{
			ID:                     uuid.NewString(),
			Email:                  email,
			PasswordHash:           &hash,
			Provider:               "local",
			Role:                   "user",
			Name:                   req.Name,
			Phone:                  req.Phone,
			Address:                req.Address,
			IsEmailVerified:        false,
			EmailVerificationToken: &verifToken,
			EmailVerificationExp:   &exp,
		}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				// Lost a race with a concurrent registration.
				return MessageResponse{}, ErrVerificationPending
			}
			return MessageResponse{}, fmt.Errorf("create user: %w", err)
		}
		if err := s.mailer.SendVerification(ctx, email, verifToken); err != nil {
			return MessageResponse{}, fmt.Errorf("send verification mail: %w", err)
		}
		return MessageResponse{Message: "Account created. Check your email to verify your account."}, nil

	default:
		return MessageResponse{}, fmt.Errorf("lookup user: %w", err)
	}
}

// VerifyEmail consumes an emailed verification token and returns the
// static page describing the outcome.  The three outcomes share one
// code path; only the rendered body differs.
func (s *Service) VerifyEmail(ctx context.Context, tok string) string {
	u, err := s.users.GetByVerificationToken(ctx, tok)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("auth: verify-email lookup failed: %v", err)
		}
		return invalidTokenHTML
	}
	if u.EmailVerificationExp == nil || u.EmailVerificationExp.Before(s.now()) {
		return tokenExpiredHTML
	}
	if err := s.users.MarkEmailVerified(ctx, u.ID); err != nil {
		log.Printf("auth: mark email verified failed for %s: %v", u.ID, err)
		return invalidTokenHTML
	}
	return verifySuccessHTML
}

// Login authenticates credentials, enforces the lockout policy and
// opens a session with a fresh token pair.
//
// The failure counter is principal-scoped, not source-scoped: a
// distributed attacker can still lock out a victim account.  Accepted
// limitation of the current policy.
func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Username))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if u.PasswordHash == nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !u.IsEmailVerified {
		return TokenPair{}, ErrEmailNotVerified
	}
	if u.LockedUntil != nil && u.LockedUntil.After(s.now()) {
		return TokenPair{}, ErrAccountLocked
	}

	if !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		attempts := u.FailedLoginAttempts + 1
		if attempts >= s.opts.LoginMaxAttempts {
			lockedUntil := s.now().Add(s.opts.LockoutDuration)
			if err := s.users.UpdateLoginState(ctx, u.ID, 0, &lockedUntil); err != nil {
				return TokenPair{}, fmt.Errorf("persist lockout: %w", err)
			}
			log.Printf("auth: account %s locked until %s after %d failed attempts", email, lockedUntil.Format(time.RFC3339), attempts)
			return TokenPair{}, ErrAccountLocked
		}
		if err := s.users.UpdateLoginState(ctx, u.ID, attempts, u.LockedUntil); err != nil {
			return TokenPair{}, fmt.Errorf("persist failed attempt: %w", err)
		}
		return TokenPair{}, ErrInvalidCredentials
	}

	if u.FailedLoginAttempts > 0 || u.LockedUntil != nil {
		if err := s.users.UpdateLoginState(ctx, u.ID, 0, nil); err != nil {
			return TokenPair{}, fmt.Errorf("reset failed attempts: %w", err)
		}
	}

	access, _, err := s.tokens.SignAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	sessionID := uuid.NewString()
	refresh, refreshExp, err := s.tokens.SignRefresh(sessionID, u.ID, u.Email, u.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	sess := &model.UserSession{
		SessionID:        sessionID,
		UserID:           u.ID,
		RefreshTokenHash: utils.HashToken(refresh),
		IPAddress:        req.IPAddress,
		UserAgent:        req.UserAgent,
		ExpiresAt:        refreshExp,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return TokenPair{}, fmt.Errorf("create session: %w", err)
	}

	return TokenPair{AcceptToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token.  The
// refresh token and session are not rotated on this path; a leaked
// refresh token therefore stays valid for its full lifetime, which is a
// known hardening gap recorded in DESIGN.md.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (RefreshResponse, error) {
	claims, ok := s.tokens.VerifyRefresh(req.RefreshToken)
	if !ok {
		return RefreshResponse{}, ErrInvalidRefreshToken
	}

	sess, err := s.sessions.GetBySessionID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResponse{}, ErrSessionNotFound
		}
		return RefreshResponse{}, fmt.Errorf("lookup session: %w", err)
	}
	if sess.IsRevoked || sess.ExpiresAt.Before(s.now()) {
		return RefreshResponse{}, ErrSessionNotFound
	}
	if s.opts.EnforceFingerprint &&
		(sess.IPAddress != req.IPAddress || sess.UserAgent != req.UserAgent) {
		return RefreshResponse{}, ErrSessionNotFound
	}

	// The session row must anchor this exact token; a second, validly
	// signed refresh token for the same session id is rejected here.
	if utils.HashToken(req.RefreshToken) != sess.RefreshTokenHash {
		return RefreshResponse{}, ErrInvalidRefreshToken
	}

	// Short-circuit while the presented access token is still valid to
	// avoid pointless token churn.
	if _, stillValid := s.tokens.VerifyAccess(req.AcceptToken); stillValid {
		return RefreshResponse{
			AccessToken: req.AcceptToken,
			Message:     "access token still valid",
			StillValid:  true,
		}, nil
	}

	for _, raw := range []string{req.RefreshToken, req.AcceptToken} {
		revoked, err := s.revoked.IsRevoked(ctx, utils.HashToken(raw))
		if err != nil {
			return RefreshResponse{}, fmt.Errorf("ledger lookup: %w", err)
		}
		if revoked {
			return RefreshResponse{}, ErrTokenRevoked
		}
	}

	access, _, err := s.tokens.SignAccess(claims.UserID, claims.Username, claims.Role)
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("sign access token: %w", err)
	}
	return RefreshResponse{AccessToken: access}, nil
}

// Logout revokes the session behind a refresh token and appends both
// presented tokens to the revocation ledger.  The caller must present
// the fingerprint the session was opened with.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) (MessageResponse, error) {
	claims, ok := s.tokens.VerifyRefresh(req.RefreshToken)
	if !ok {
		return MessageResponse{}, ErrInvalidRefreshToken
	}

	sess, err := s.sessions.GetBySessionID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResponse{}, ErrSessionNotFound
		}
		return MessageResponse{}, fmt.Errorf("lookup session: %w", err)
	}
	if sess.IPAddress != req.IPAddress || sess.UserAgent != req.UserAgent {
		return MessageResponse{}, ErrFingerprintMismatch
	}

	if err := s.sessions.Revoke(ctx, sess.SessionID); err != nil {
		return MessageResponse{}, fmt.Errorf("revoke session: %w", err)
	}
	if err := s.revoked.Add(ctx, utils.HashToken(req.RefreshToken)); err != nil {
		return MessageResponse{}, fmt.Errorf("ledger refresh token: %w", err)
	}
	if req.AcceptToken != "" {
		if err := s.revoked.Add(ctx, utils.HashToken(req.AcceptToken)); err != nil {
			return MessageResponse{}, fmt.Errorf("ledger access token: %w", err)
		}
	}
	return MessageResponse{Message: "Logout successful"}, nil
}

// Me resolves an access token to the owning principal's profile.
func (s *Service) Me(ctx context.Context, acceptToken string) (Profile, error) {
	claims, ok := s.tokens.VerifyAccess(acceptToken)
	if !ok {
		return Profile{}, ErrInvalidOrExpiredToken
	}
	revoked, err := s.revoked.IsRevoked(ctx, utils.HashToken(acceptToken))
	if err != nil {
		return Profile{}, fmt.Errorf("ledger lookup: %w", err)
	}
	if revoked {
		return Profile{}, ErrTokenRevoked
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("lookup user: %w", err)
	}
	return profileOf(u), nil
}

// ForgotPassword starts the reset flow for a verified, unlocked
// principal.  At most one reset token is outstanding at a time.
func (s *Service) ForgotPassword(ctx context.Context, username string) (MessageResponse, error) {
	email := strings.ToLower(strings.TrimSpace(username))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResponse{}, ErrNotFound
		}
		return MessageResponse{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsEmailVerified {
		return MessageResponse{}, ErrEmailNotVerified
	}
	if u.LockedUntil != nil && u.LockedUntil.After(s.now()) {
		return MessageResponse{}, ErrAccountLocked
	}
	if u.ResetToken != nil && u.ResetTokenExp != nil && u.ResetTokenExp.After(s.now()) {
		return MessageResponse{}, ErrResetAlreadyPending
	}

	resetToken := uuid.NewString()
	exp := s.now().Add(s.opts.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, u.ID, resetToken, exp); err != nil {
		return MessageResponse{}, fmt.Errorf("set reset token: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, email, resetToken); err != nil {
		return MessageResponse{}, fmt.Errorf("send reset mail: %w", err)
	}
	return MessageResponse{Message: "Password reset email sent. Please check your inbox."}, nil
}

// ResetPassword consumes a single-use reset token and stores the new
// password.  Standing sessions survive the reset; recorded as a
// deliberate decision in DESIGN.md.
func (s *Service) ResetPassword(ctx context.Context, tok, newPassword string) (MessageResponse, error) {
	u, err := s.users.GetByResetToken(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResponse{}, ErrInvalidOrExpiredToken
		}
		return MessageResponse{}, fmt.Errorf("lookup reset token: %w", err)
	}
	if u.ResetTokenExp == nil || u.ResetTokenExp.Before(s.now()) {
		return MessageResponse{}, ErrInvalidOrExpiredToken
	}

	hash, err := utils.HashPassword(newPassword, s.opts.BcryptCost)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return MessageResponse{}, fmt.Errorf("store new password: %w", err)
	}
	return MessageResponse{Message: "Password changed successfully"}, nil
}

// RevokeAllSessions bulk-revokes every session a principal owns.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

// GetAllUsers returns every principal's profile (admin).
func (s *Service) GetAllUsers(ctx context.Context) ([]Profile, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, profileOf(u))
	}
	return profiles, nil
}

// GetUserByID returns one principal's profile (admin).
func (s *Service) GetUserByID(ctx context.Context, id string) (Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("lookup user: %w", err)
	}
	return profileOf(u), nil
}

// DeleteUser removes a principal and cascades: every session is revoked
// and deleted before the user row goes away.
func (s *Service) DeleteUser(ctx context.Context, id string) (MessageResponse, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResponse{}, ErrNotFound
		}
		return MessageResponse{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
		return MessageResponse{}, fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.sessions.DeleteForUser(ctx, id); err != nil {
		return MessageResponse{}, fmt.Errorf("delete sessions: %w", err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResponse{}, ErrNotFound
		}
		return MessageResponse{}, fmt.Errorf("delete user: %w", err)
	}
	return MessageResponse{Message: "User deleted"}, nil
}

// UpdateUser applies admin edits to a principal.  Any identity or role
// change invalidates all standing sessions, so the update always ends
// with a bulk revoke.
func (s *Service) UpdateUser(ctx context.Context, req UpdateUserRequest) (Profile, error) {
	u, err := s.users.GetByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("lookup user: %w", err)
	}

	name, phone, address, role := u.Name, u.Phone, u.Address, u.Role
	if req.Name != "" {
		name = req.Name
	}
	if req.Phone != "" {
		phone = req.Phone
	}
	if req.Address != "" {
		address = req.Address
	}
	if req.Role != "" {
		role = req.Role
	}

	if err := s.users.UpdateProfile(ctx, u.ID, name, phone, address, role); err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, u.ID); err != nil {
		return Profile{}, fmt.Errorf("revoke sessions after update: %w", err)
	}

	u.Name, u.Phone, u.Address, u.Role = name, phone, address, role
	return profileOf(u), nil
}

func profileOf(u model.User) Profile {
	return Profile{
		ID:              u.ID,
		Username:        u.Email,
		Email:           u.Email,
		Role:            u.Role,
		Name:            u.Name,
		Phone:           u.Phone,
		Address:         u.Address,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
