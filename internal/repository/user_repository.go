package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ecommerce-auth/internal/model"
)

// UserRepo persists principals in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id,email,password_hash,provider,role,name,phone,address,
is_email_verified,email_verification_token,email_verification_expires_at,
failed_login_attempts,locked_until,reset_token,reset_token_expires_at,
created_at,updated_at`

// Create inserts a new principal.  The caller supplies the id and the
// already-hashed password.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users
		 (id,email,password_hash,provider,role,name,phone,address,
		  is_email_verified,email_verification_token,email_verification_expires_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.Provider, u.Role, u.Name, u.Phone, u.Address,
		u.IsEmailVerified, u.EmailVerificationToken, u.EmailVerificationExp)
	if err != nil {
		// MySQL duplicate-entry on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a principal by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a principal by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// GetByVerificationToken fetches the principal holding an outstanding
// email verification token, expired or not.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email_verification_token=? LIMIT 1", token)
	return scanUser(row)
}

// GetByResetToken fetches the principal holding an outstanding password
// reset token, expired or not.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE reset_token=? LIMIT 1", token)
	return scanUser(row)
}

// GetAll returns every principal, newest first.
func (r *UserRepo) GetAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ReissueVerification overwrites the password hash and the verification
// token/expiry of a still-unverified principal.
func (r *UserRepo) ReissueVerification(ctx context.Context, id, passwordHash, token string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, email_verification_token=?,
		 email_verification_expires_at=? WHERE id=?`,
		passwordHash, token, exp, id)
	return err
}

// MarkEmailVerified flips the verified flag and clears the token pair.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_email_verified=1, email_verification_token=NULL,
		 email_verification_expires_at=NULL WHERE id=?`, id)
	return err
}

// UpdateLoginState persists the failure counter and lockout deadline in
// one statement; lockedUntil nil clears any standing lock.
func (r *UserRepo) UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_login_attempts=?, locked_until=? WHERE id=?",
		attempts, lockedUntil, id)
	return err
}

// SetResetToken stores a fresh password reset token and its expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, id, token string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token=?, reset_token_expires_at=? WHERE id=?",
		token, exp, id)
	return err
}

// UpdatePassword stores a new password hash and consumes the reset
// token in the same statement.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_token=NULL,
		 reset_token_expires_at=NULL WHERE id=?`, passwordHash, id)
	return err
}

// UpdateProfile applies admin-editable fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, phone, address, role string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, phone=?, address=?, role=? WHERE id=?",
		name, phone, address, role, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a principal.  Session revocation is handled by the
// engine before calling this.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanUser(s scanner) (model.User, error) {
	var (
		u            model.User
		passwordHash sql.NullString
		verifToken   sql.NullString
		verifExp     sql.NullTime
		lockedUntil  sql.NullTime
		resetToken   sql.NullString
		resetExp     sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &passwordHash, &u.Provider, &u.Role,
		&u.Name, &u.Phone, &u.Address,
		&u.IsEmailVerified, &verifToken, &verifExp,
		&u.FailedLoginAttempts, &lockedUntil, &resetToken, &resetExp,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	if verifToken.Valid {
		u.EmailVerificationToken = &verifToken.String
	}
	if verifExp.Valid {
		u.EmailVerificationExp = &verifExp.Time
	}
	if lockedUntil.Valid {
		u.LockedUntil = &lockedUntil.Time
	}
	if resetToken.Valid {
		u.ResetToken = &resetToken.String
	}
	if resetExp.Valid {
		u.ResetTokenExp = &resetExp.Time
	}
	return u, nil
}
