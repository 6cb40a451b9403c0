package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerHarness(t *testing.T) (*RevokedTokenRepo, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRevokedTokenRepo(db, rdb, 7*24*time.Hour), mock, mr
}

func TestRevokedTokenAddMirrorsToCache(t *testing.T) {
	repo, mock, mr := newLedgerHarness(t)

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Add(context.Background(), "abc123"))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, mr.Exists("revoked:abc123"))
	ttl := mr.TTL("revoked:abc123")
	assert.Greater(t, ttl, 6*24*time.Hour)
}

func TestRevokedTokenCacheHitSkipsDatabase(t *testing.T) {
	repo, mock, mr := newLedgerHarness(t)

	// Seed the cache only; no database expectation is registered, so a
	// query would fail the test.
	mr.Set("revoked:deadbeef", "1")

	revoked, err := repo.IsRevoked(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokedTokenCacheMissFallsBackAndBackfills(t *testing.T) {
	repo, mock, mr := newLedgerHarness(t)

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens WHERE token_hash=").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	revoked, err := repo.IsRevoked(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The hit was written back to the cache.
	assert.True(t, mr.Exists("revoked:abc123"))
}

func TestRevokedTokenNotRevoked(t *testing.T) {
	repo, mock, _ := newLedgerHarness(t)

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens WHERE token_hash=").
		WithArgs("clean").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	revoked, err := repo.IsRevoked(context.Background(), "clean")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokedTokenNilRedisDegradesToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRevokedTokenRepo(db, nil, 7*24*time.Hour)

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Add(context.Background(), "abc123"))

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens WHERE token_hash=").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	revoked, err := repo.IsRevoked(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokedTokenDeleteOlderThan(t *testing.T) {
	repo, mock, _ := newLedgerHarness(t)

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM revoked_tokens WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 9))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
