package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chat_backend/internal/domain"
)

type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

const groupColumns = `g.id, g.name, g.description, g.creator_id, g.image_url, g.is_public, g.created_at, g.updated_at`

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO chat_groups (id, name, description, creator_id, image_url, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, g.ID, g.Name, g.Description, g.CreatorID, g.ImageURL, g.IsPublic).Scan(&g.CreatedAt, &g.UpdatedAt); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, NOW())`, g.ID, g.CreatorID,
	); err != nil {
		return fmt.Errorf("insert group creator: %w", err)
	}
	return tx.Commit()
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	g, err := scanGroupRow(r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM chat_groups g WHERE g.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return g, nil
}

func (r *GroupRepo) Update(ctx context.Context, g *domain.Group) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE chat_groups
		SET name = $1, description = $2, image_url = $3, is_public = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`, g.Name, g.Description, g.ImageURL, g.IsPublic, g.ID).Scan(&g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

func (r *GroupRepo) ListForMember(ctx context.Context, userID string) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups for member: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING
	`, groupID, userID); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check group member: %w", err)
	}
	return exists, nil
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *GroupRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Group, error) {
	pattern := containsPattern(query)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM chat_groups g
		WHERE g.name ILIKE $1 OR g.description ILIKE $1
		ORDER BY g.name ASC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search groups: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

func scanGroupRow(row rowScanner) (*domain.Group, error) {
	g := &domain.Group{}
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.ImageURL, &g.IsPublic, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return g, nil
}

func scanGroups(rows *sql.Rows) ([]*domain.Group, error) {
	var out []*domain.Group
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
