package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chat_backend/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, email, hashed_password, bio, image_url, is_bot, is_online, created_at, last_seen`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (id, username, email, hashed_password, bio, image_url, is_bot, is_online, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.HashedPassword, u.Bio, u.ImageURL, u.IsBot, u.IsOnline, now, now,
	); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt, u.LastSeen = now, now
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET email = ?, hashed_password = ?, bio = ?, image_url = ?, is_online = ?, last_seen = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		u.Email, u.HashedPassword, u.Bio, u.ImageURL, u.IsOnline, u.LastSeen.UTC(), u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Search matches username or email, case-insensitively.
func (r *UserRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	pattern := containsPattern(query)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id <> ? AND (username LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')
		ORDER BY username ASC
		LIMIT ?
	`, excludeID, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *UserRepo) SetOnlineStatus(ctx context.Context, id string, isOnline bool) error {
	query := `UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, isOnline, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var email sql.NullString
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.HashedPassword,
		&u.Bio,
		&u.ImageURL,
		&u.IsBot,
		&u.IsOnline,
		&u.CreatedAt,
		&u.LastSeen,
	); err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	return u, nil
}

func (r *UserRepo) scanUser(row *sql.Row) (*domain.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func scanUsers(rows *sql.Rows) ([]*domain.User, error) {
	var users []*domain.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
