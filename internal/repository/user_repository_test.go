package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ecommerce-auth/internal/model"
)

var userCols = []string{
	"id", "email", "password_hash", "provider", "role", "name", "phone", "address",
	"is_email_verified", "email_verification_token", "email_verification_expires_at",
	"failed_login_attempts", "locked_until", "reset_token", "reset_token_expires_at",
	"created_at", "updated_at",
}

func userRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(
		"u-1", "alice@example.com", "bcrypt-hash", "local", "user", "Alice", "", "",
		true, nil, nil,
		0, nil, nil, nil,
		now, now,
	)
}

func TestUserRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	hash := "bcrypt-hash"
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u-1", "alice@example.com", &hash, "local", "user", "Alice", "", "",
			false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tok := "verif-tok"
	exp := time.Now().Add(15 * time.Minute)
	err = repo.Create(context.Background(), &model.User{
		ID: "u-1", Email: " Alice@Example.com", PasswordHash: &hash,
		Provider: "local", Role: "user", Name: "Alice",
		EmailVerificationToken: &tok, EmailVerificationExp: &exp,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'alice@example.com' for key 'uq_users_email'"))

	err = repo.Create(context.Background(), &model.User{ID: "u-1", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email=").
		WithArgs("alice@example.com").
		WillReturnRows(userRow(now))

	u, err := repo.GetByEmail(context.Background(), " ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	require.NotNil(t, u.PasswordHash)
	assert.Equal(t, "bcrypt-hash", *u.PasswordHash)
	assert.True(t, u.IsEmailVerified)
	assert.Nil(t, u.EmailVerificationToken)
	assert.Nil(t, u.LockedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email=").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err = repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoUpdateLoginState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	until := time.Now().Add(15 * time.Minute)
	mock.ExpectExec("UPDATE users SET failed_login_attempts=").
		WithArgs(0, &until, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateLoginState(context.Background(), "u-1", 0, &until))

	// A nil deadline clears the lock.
	mock.ExpectExec("UPDATE users SET failed_login_attempts=").
		WithArgs(3, nil, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateLoginState(context.Background(), "u-1", 3, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoUpdateProfileNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectExec("UPDATE users SET name=").
		WithArgs("N", "P", "A", "user", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateProfile(context.Background(), "missing", "N", "P", "A", "user")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectExec("DELETE FROM users WHERE id=").
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), "u-1"))

	mock.ExpectExec("DELETE FROM users WHERE id=").
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u-1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	now := time.Now()
	rows := userRow(now).AddRow(
		"u-2", "bob@example.com", nil, "local", "user", "Bob", "", "",
		false, "tok", now.Add(15*time.Minute),
		2, nil, nil, nil,
		now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY created_at DESC").
		WillReturnRows(rows)

	users, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Nil(t, users[1].PasswordHash)
	require.NotNil(t, users[1].EmailVerificationToken)
	assert.Equal(t, "tok", *users[1].EmailVerificationToken)
	assert.Equal(t, 2, users[1].FailedLoginAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
