package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ecommerce-auth/internal/model"
)

// SessionRepo persists login sessions in the 'user_sessions' table.
// Rows are written once at login and only ever mutated by revocation;
// access-token rotation never rewrites a session.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row for a fresh login.
func (r *SessionRepo) Create(ctx context.Context, s *model.UserSession) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_sessions
		 (session_id, user_id, refresh_token_hash, ip_address, user_agent, expires_at, is_revoked)
		 VALUES (?,?,?,?,?,?,0)`,
		s.SessionID, s.UserID, s.RefreshTokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt)
	return err
}

// GetBySessionID fetches a session by its embedded id regardless of
// revocation state; callers inspect IsRevoked and ExpiresAt themselves
// so that logout and refresh can report distinct outcomes.
func (r *SessionRepo) GetBySessionID(ctx context.Context, sessionID string) (model.UserSession, error) {
	var s model.UserSession
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, session_id, user_id, refresh_token_hash, ip_address, user_agent,
		        expires_at, is_revoked, created_at
		 FROM user_sessions WHERE session_id=? LIMIT 1`, sessionID).
		Scan(&s.ID, &s.SessionID, &s.UserID, &s.RefreshTokenHash, &s.IPAddress,
			&s.UserAgent, &s.ExpiresAt, &s.IsRevoked, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserSession{}, ErrNotFound
		}
		return model.UserSession{}, err
	}
	return s, nil
}

// Revoke marks one session as revoked.
func (r *SessionRepo) Revoke(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET is_revoked=1 WHERE session_id=? AND is_revoked=0",
		sessionID)
	return err
}

// RevokeAllForUser marks every session owned by the principal as
// revoked.  Used by admin deletion and by profile updates.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET is_revoked=1 WHERE user_id=? AND is_revoked=0",
		userID)
	return err
}

// DeleteForUser removes every session owned by the principal; part of
// the admin delete cascade.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_sessions WHERE user_id=?", userID)
	return err
}

// DeleteExpired drops sessions whose expiry has passed.  Called by the
// periodic sweeper.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_sessions WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
