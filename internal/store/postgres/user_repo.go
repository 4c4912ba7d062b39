package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chat_backend/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `u.id, u.username, u.email, u.hashed_password, u.bio, u.image_url, u.is_bot, u.is_online, u.created_at, u.last_seen`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, hashed_password, bio, image_url, is_bot, is_online, created_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, last_seen
	`, u.ID, u.Username, u.Email, u.HashedPassword, u.Bio, u.ImageURL, u.IsBot, u.IsOnline,
	).Scan(&u.CreatedAt, &u.LastSeen)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = $1`, username))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email))
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = $1, hashed_password = $2, bio = $3, image_url = $4, is_online = $5, last_seen = $6
		WHERE id = $7
	`, u.Email, u.HashedPassword, u.Bio, u.ImageURL, u.IsOnline, u.LastSeen, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	pattern := containsPattern(query)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.id <> $1 AND (u.username ILIKE $2 OR u.email ILIKE $2)
		ORDER BY u.username ASC
		LIMIT $3
	`, excludeID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *UserRepo) SetOnlineStatus(ctx context.Context, id string, isOnline bool) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_online = $1, last_seen = NOW() WHERE id = $2`, isOnline, id,
	); err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	return nil
}

func scanUserRow(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var email sql.NullString
	if err := row.Scan(
		&u.ID, &u.Username, &email, &u.HashedPassword, &u.Bio, &u.ImageURL,
		&u.IsBot, &u.IsOnline, &u.CreatedAt, &u.LastSeen,
	); err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	return u, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
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
