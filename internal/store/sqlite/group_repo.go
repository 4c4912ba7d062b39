package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

// Create inserts the group and makes its creator the first member.
func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_groups (id, name, description, creator_id, image_url, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Name, g.Description, g.CreatorID, g.ImageURL, g.IsPublic, now, now); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)
	`, g.ID, g.CreatorID, now); err != nil {
		return fmt.Errorf("insert group creator: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group: %w", err)
	}
	g.CreatedAt, g.UpdatedAt = now, now
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	g, err := scanGroupRow(r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM chat_groups g WHERE g.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return g, nil
}

func (r *GroupRepo) Update(ctx context.Context, g *domain.Group) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE chat_groups
		SET name = ?, description = ?, image_url = ?, is_public = ?, updated_at = ?
		WHERE id = ?
	`, g.Name, g.Description, g.ImageURL, g.IsPublic, now, g.ID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	g.UpdatedAt = now
	return nil
}

func (r *GroupRepo) ListForMember(ctx context.Context, userID string) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
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
		INSERT OR IGNORE INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)
	`, groupID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM group_members WHERE group_id = ? AND user_id = ?
	`, groupID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check group member: %w", err)
	}
	return n > 0, nil
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.hashed_password, u.bio, u.image_url, u.is_bot, u.is_online, u.created_at, u.last_seen
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ?
		ORDER BY m.joined_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// Search matches name or description, case-insensitively.
func (r *GroupRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Group, error) {
	pattern := containsPattern(query)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM chat_groups g
		WHERE g.name LIKE ? ESCAPE '\' OR g.description LIKE ? ESCAPE '\'
		ORDER BY g.name ASC
		LIMIT ?
	`, pattern, pattern, limit)
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
