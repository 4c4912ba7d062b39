package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               TEXT         PRIMARY KEY,
			username         VARCHAR(50)  UNIQUE NOT NULL,
			email            VARCHAR(100) UNIQUE,
			hashed_password  VARCHAR(255) NOT NULL,
			bio              TEXT         NOT NULL DEFAULT '',
			image_url        TEXT         NOT NULL DEFAULT '',
			is_bot           BOOLEAN      NOT NULL DEFAULT FALSE,
			is_online        BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS friend_requests (
			id         TEXT        PRIMARY KEY,
			from_id    TEXT        NOT NULL REFERENCES users(id),
			to_id      TEXT        NOT NULL REFERENCES users(id),
			status     VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS friendships (
			user_id    TEXT        NOT NULL REFERENCES users(id),
			friend_id  TEXT        NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, friend_id)
		)`,

		`CREATE TABLE IF NOT EXISTS chat_groups (
			id          TEXT         PRIMARY KEY,
			name        VARCHAR(100) NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			creator_id  TEXT         NOT NULL REFERENCES users(id),
			image_url   TEXT         NOT NULL DEFAULT '',
			is_public   BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id  TEXT        NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
			user_id   TEXT        NOT NULL REFERENCES users(id),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS group_requests (
			id         TEXT        PRIMARY KEY,
			user_id    TEXT        NOT NULL REFERENCES users(id),
			group_id   TEXT        NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
			status     VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			seq               BIGSERIAL   PRIMARY KEY,
			id                TEXT        UNIQUE NOT NULL,
			sender_id         TEXT        NOT NULL REFERENCES users(id),
			content           TEXT        NOT NULL,
			conversation_type VARCHAR(16) NOT NULL,
			conversation_id   TEXT        NOT NULL,
			recipient_id      TEXT,
			group_id          TEXT,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_is_online ON users(is_online)`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_from ON friend_requests(from_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_group_requests_group ON group_requests(group_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_group_requests_user ON group_requests(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_id, seq DESC)`,

		// Add columns to tables created by an older schema
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS is_bot BOOLEAN NOT NULL DEFAULT FALSE`,
		`ALTER TABLE chat_groups ADD COLUMN IF NOT EXISTS is_public BOOLEAN NOT NULL DEFAULT TRUE`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}
