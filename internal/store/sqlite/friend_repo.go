package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO friend_requests (id, from_id, to_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, fr.ID, fr.FromID, fr.ToID, fr.Status, now); err != nil {
		return fmt.Errorf("insert friend request: %w", err)
	}
	fr.CreatedAt = now
	return nil
}

func (r *FriendRepo) GetRequest(ctx context.Context, id string) (*domain.FriendRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+friendRequestColumns+` FROM friend_requests WHERE id = ?`, id)
	return scanFriendRequest(row)
}

// FindRequestBetween returns any request between a and b, in either direction.
func (r *FriendRepo) FindRequestBetween(ctx context.Context, a, b string) (*domain.FriendRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+friendRequestColumns+`
		FROM friend_requests
		WHERE (from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)
		ORDER BY created_at DESC
		LIMIT 1
	`, a, b, b, a)
	return scanFriendRequest(row)
}

func (r *FriendRepo) UpdateRequestStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE friend_requests SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *FriendRepo) ListPendingTo(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listPending(ctx, `to_id = ?`, userID)
}

func (r *FriendRepo) ListPendingFrom(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listPending(ctx, `from_id = ?`, userID)
}

func (r *FriendRepo) listPending(ctx context.Context, where string, userID string) ([]*domain.FriendRequest, error) {
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
		fr, err := scanFriendRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// AddFriendship records the friendship in both directions.
func (r *FriendRepo) AddFriendship(ctx context.Context, a, b string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)
		`, pair[0], pair[1], now); err != nil {
			return fmt.Errorf("insert friendship: %w", err)
		}
	}
	return tx.Commit()
}

func (r *FriendRepo) ListFriends(ctx context.Context, userID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.hashed_password, u.bio, u.image_url, u.is_bot, u.is_online, u.created_at, u.last_seen
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.username ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanFriendRequestRow(row rowScanner) (*domain.FriendRequest, error) {
	fr := &domain.FriendRequest{}
	if err := row.Scan(&fr.ID, &fr.FromID, &fr.ToID, &fr.Status, &fr.CreatedAt); err != nil {
		return nil, err
	}
	return fr, nil
}

func scanFriendRequest(row *sql.Row) (*domain.FriendRequest, error) {
	fr, err := scanFriendRequestRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan friend request: %w", err)
	}
	return fr, nil
}
