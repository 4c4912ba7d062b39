package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chat_backend/internal/domain"
)

type GroupRequestRepo struct {
	db *sql.DB
}

func NewGroupRequestRepo(db *sql.DB) *GroupRequestRepo {
	return &GroupRequestRepo{db: db}
}

var _ domain.GroupRequestRepository = (*GroupRequestRepo)(nil)

const groupRequestColumns = `id, user_id, group_id, status, created_at`

func (r *GroupRequestRepo) Create(ctx context.Context, gr *domain.GroupRequest) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO group_requests (id, user_id, group_id, status, created_at) VALUES (?, ?, ?, ?, ?)
	`, gr.ID, gr.UserID, gr.GroupID, gr.Status, now); err != nil {
		return fmt.Errorf("insert group request: %w", err)
	}
	gr.CreatedAt = now
	return nil
}

func (r *GroupRequestRepo) GetByID(ctx context.Context, id string) (*domain.GroupRequest, error) {
	return scanGroupRequest(r.db.QueryRowContext(ctx, `SELECT `+groupRequestColumns+` FROM group_requests WHERE id = ?`, id))
}

func (r *GroupRequestRepo) FindPending(ctx context.Context, userID, groupID string) (*domain.GroupRequest, error) {
	return scanGroupRequest(r.db.QueryRowContext(ctx, `
		SELECT `+groupRequestColumns+`
		FROM group_requests
		WHERE user_id = ? AND group_id = ? AND status = 'pending'
		LIMIT 1
	`, userID, groupID))
}

func (r *GroupRequestRepo) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_requests SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update group request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GroupRequestRepo) ListPendingForGroup(ctx context.Context, groupID string) ([]*domain.GroupRequest, error) {
	return r.list(ctx, `group_id = ?`, groupID)
}

func (r *GroupRequestRepo) ListPendingForUser(ctx context.Context, userID string) ([]*domain.GroupRequest, error) {
	return r.list(ctx, `user_id = ?`, userID)
}

func (r *GroupRequestRepo) list(ctx context.Context, where, arg string) ([]*domain.GroupRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+groupRequestColumns+`
		FROM group_requests
		WHERE `+where+` AND status = 'pending'
		ORDER BY created_at DESC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list group requests: %w", err)
	}
	defer rows.Close()

	var out []*domain.GroupRequest
	for rows.Next() {
		gr, err := scanGroupRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group request: %w", err)
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

func scanGroupRequestRow(row rowScanner) (*domain.GroupRequest, error) {
	gr := &domain.GroupRequest{}
	if err := row.Scan(&gr.ID, &gr.UserID, &gr.GroupID, &gr.Status, &gr.CreatedAt); err != nil {
		return nil, err
	}
	return gr, nil
}

func scanGroupRequest(row *sql.Row) (*domain.GroupRequest, error) {
	gr, err := scanGroupRequestRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan group request: %w", err)
	}
	return gr, nil
}
