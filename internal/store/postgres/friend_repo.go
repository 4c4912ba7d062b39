package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chat_backend/internal/domain"
)

type FriendRepo struct {
	db *sql.DB
}

func NewFriendRepo(db *sql.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

var _ domain.FriendRepository = (*FriendRepo)(nil)

const friendRequestColumns = `id, from_id, to_id, status, created_at`

func (r *FriendRepo) CreateRequest(ctx context.Context, fr *domain.FriendRequest) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO friend_requests (id, from_id, to_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, fr.ID, fr.FromID, fr.ToID, fr.Status).Scan(&fr.CreatedAt)
}

func (r *FriendRepo) GetRequest(ctx context.Context, id string) (*domain.FriendRequest, error) {
	return scanFriendRequest(r.db.QueryRowContext(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE id = $1`, id))
}

func (r *FriendRepo) FindRequestBetween(ctx context.Context, a, b string) (*domain.FriendRequest, error) {
	return scanFriendRequest(r.db.QueryRowContext(ctx, `
		SELECT `+friendRequestColumns+`
		FROM friend_requests
		WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1)
		ORDER BY created_at DESC
		LIMIT 1
	`, a, b))
}

func (r *FriendRepo) UpdateRequestStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE friend_requests SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *FriendRepo) ListPendingTo(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listPending(ctx, `to_id = $1`, userID)
}

func (r *FriendRepo) ListPendingFrom(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listPending(ctx, `from_id = $1`, userID)
}

func (r *FriendRepo) listPending(ctx context.Context, where, userID string) ([]*domain.FriendRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+friendRequestColumns+`
		FROM friend_requests
		WHERE `+where+` AND status = 'pending'
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	var out []*domain.FriendRequest
	for rows.Next() {
		fr := &domain.FriendRequest{}
		if err := rows.Scan(&fr.ID, &fr.FromID, &fr.ToID, &fr.Status, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func (r *FriendRepo) AddFriendship(ctx context.Context, a, b string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO friendships (user_id, friend_id, created_at)
		VALUES ($1, $2, NOW()), ($2, $1, NOW())
		ON CONFLICT DO NOTHING
	`, a, b); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (r *FriendRepo) ListFriends(ctx context.Context, userID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.username ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanFriendRequest(row *sql.Row) (*domain.FriendRequest, error) {
	fr := &domain.FriendRequest{}
	err := row.Scan(&fr.ID, &fr.FromID, &fr.ToID, &fr.Status, &fr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan friend request: %w", err)
	}
	return fr, nil
}
