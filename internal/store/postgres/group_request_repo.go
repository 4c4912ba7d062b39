package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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
	return r.db.QueryRowContext(ctx, `
		INSERT INTO group_requests (id, user_id, group_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`, gr.ID, gr.UserID, gr.GroupID, gr.Status).Scan(&gr.CreatedAt)
}

func (r *GroupRequestRepo) GetByID(ctx context.Context, id string) (*domain.GroupRequest, error) {
	return scanGroupRequest(r.db.QueryRowContext(ctx,
		`SELECT `+groupRequestColumns+` FROM group_requests WHERE id = $1`, id))
}

func (r *GroupRequestRepo) FindPending(ctx context.Context, userID, groupID string) (*domain.GroupRequest, error) {
	return scanGroupRequest(r.db.QueryRowContext(ctx, `
		SELECT `+groupRequestColumns+`
		FROM group_requests
		WHERE user_id = $1 AND group_id = $2 AND status = 'pending'
		LIMIT 1
	`, userID, groupID))
}

func (r *GroupRequestRepo) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_requests SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update group request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GroupRequestRepo) ListPendingForGroup(ctx context.Context, groupID string) ([]*domain.GroupRequest, error) {
	return r.list(ctx, `group_id = $1`, groupID)
}

func (r *GroupRequestRepo) ListPendingForUser(ctx context.Context, userID string) ([]*domain.GroupRequest, error) {
	return r.list(ctx, `user_id = $1`, userID)
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
		gr := &domain.GroupRequest{}
		if err := rows.Scan(&gr.ID, &gr.UserID, &gr.GroupID, &gr.Status, &gr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group request: %w", err)
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

func scanGroupRequest(row *sql.Row) (*domain.GroupRequest, error) {
	gr := &domain.GroupRequest{}
	err := row.Scan(&gr.ID, &gr.UserID, &gr.GroupID, &gr.Status, &gr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan group request: %w", err)
	}
	return gr, nil
}
