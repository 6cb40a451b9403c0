package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ecommerce-auth/internal/model"
)

func TestSessionRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepo(db)

	exp := time.Now().Add(7 * 24 * time.Hour)
	mock.ExpectExec("INSERT INTO user_sessions").
		WithArgs("s-1", "u-1", "hash", "10.0.0.1", "cli/1.0", exp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Create(context.Background(), &model.UserSession{
		SessionID: "s-1", UserID: "u-1", RefreshTokenHash: "hash",
		IPAddress: "10.0.0.1", UserAgent: "cli/1.0", ExpiresAt: exp,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepoGetBySessionID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepo(db)

	now := time.Now()
	cols := []string{"id", "session_id", "user_id", "refresh_token_hash",
		"ip_address", "user_agent", "expires_at", "is_revoked", "created_at"}

	mock.ExpectQuery("SELECT (.+) FROM user_sessions WHERE session_id=").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "s-1", "u-1", "hash", "10.0.0.1", "cli/1.0", now.Add(time.Hour), true, now))

	s, err := repo.GetBySessionID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.UserID)
	// Revoked rows still come back; the engine decides what that means.
	assert.True(t, s.IsRevoked)

	mock.ExpectQuery("SELECT (.+) FROM user_sessions WHERE session_id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = repo.GetBySessionID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepoRevoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepo(db)

	mock.ExpectExec("UPDATE user_sessions SET is_revoked=1 WHERE session_id=").
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Revoke(context.Background(), "s-1"))

	mock.ExpectExec("UPDATE user_sessions SET is_revoked=1 WHERE user_id=").
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	assert.NoError(t, repo.RevokeAllForUser(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepoDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepo(db)

	mock.ExpectExec("DELETE FROM user_sessions WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
