package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevokedTokenRepo maintains the token deny-list.  MySQL is the source
// of truth; Redis, when available, fronts lookups so that the hot
// refresh/me paths do not hit the database for every request.  A nil
// Redis client degrades to database-only operation.
type RevokedTokenRepo struct {
	DB        *sql.DB
	Redis     *redis.Client
	Retention time.Duration
}

func NewRevokedTokenRepo(db *sql.DB, rdb *redis.Client, retention time.Duration) *RevokedTokenRepo {
	return &RevokedTokenRepo{DB: db, Redis: rdb, Retention: retention}
}

const revokedKeyPrefix = "revoked:"

// Add appends a token hash to the ledger.  The Redis mirror carries the
// retention window as TTL; cache errors are logged and ignored because
// the database insert already made the revocation durable.
func (r *RevokedTokenRepo) Add(ctx context.Context, tokenHash string) error {
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO revoked_tokens (token_hash) VALUES (?)", tokenHash); err != nil {
		return err
	}
	if r.Redis != nil {
		if err := r.Redis.Set(ctx, revokedKeyPrefix+tokenHash, 1, r.Retention).Err(); err != nil {
			log.Printf("revoked-tokens: redis set failed: %v", err)
		}
	}
	return nil
}

// IsRevoked reports whether a token hash is on the deny-list.
func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	if r.Redis != nil {
		n, err := r.Redis.Exists(ctx, revokedKeyPrefix+tokenHash).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		if err != nil {
			log.Printf("revoked-tokens: redis lookup failed, falling back to db: %v", err)
		}
	}

	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM revoked_tokens WHERE token_hash=? LIMIT 1", tokenHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Backfill the cache so the next lookup is served from Redis.
	if r.Redis != nil {
		if err := r.Redis.Set(ctx, revokedKeyPrefix+tokenHash, 1, r.Retention).Err(); err != nil {
			log.Printf("revoked-tokens: redis backfill failed: %v", err)
		}
	}
	return true, nil
}

// DeleteOlderThan prunes ledger entries past the retention window.  Any
// token old enough to be pruned has long expired cryptographically, so
// dropping the entry does not resurrect it.
func (r *RevokedTokenRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
