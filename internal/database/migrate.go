package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the three auth tables when they do not exist yet.
// The service owns its schema; peer services never touch these tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id CHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NULL,
			provider VARCHAR(32) NOT NULL DEFAULT 'local',
			role VARCHAR(32) NOT NULL DEFAULT 'user',
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			address VARCHAR(255) NOT NULL DEFAULT '',
			is_email_verified TINYINT(1) NOT NULL DEFAULT 0,
			email_verification_token VARCHAR(255) NULL,
			email_verification_expires_at DATETIME NULL,
			failed_login_attempts INT NOT NULL DEFAULT 0,
			locked_until DATETIME NULL,
			reset_token VARCHAR(255) NULL,
			reset_token_expires_at DATETIME NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_users_email (email),
			KEY idx_users_verification_token (email_verification_token),
			KEY idx_users_reset_token (reset_token)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS user_sessions (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			session_id CHAR(36) NOT NULL,
			user_id CHAR(36) NOT NULL,
			refresh_token_hash CHAR(64) NOT NULL,
			ip_address VARCHAR(64) NOT NULL DEFAULT '',
			user_agent VARCHAR(512) NOT NULL DEFAULT '',
			expires_at DATETIME NOT NULL,
			is_revoked TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_sessions_session_id (session_id),
			KEY idx_sessions_user_id (user_id),
			CONSTRAINT fk_sessions_user FOREIGN KEY (user_id)
				REFERENCES users(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS revoked_tokens (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			token_hash CHAR(64) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_revoked_token_hash (token_hash),
			KEY idx_revoked_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
