package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chat_backend/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, sender_id, content, conversation_type, conversation_id, recipient_id, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, m.ID, m.SenderID, m.Content, m.ConversationType, m.ConversationID, m.RecipientID, m.GroupID,
	).Scan(&m.CreatedAt)
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, content, conversation_type, conversation_id, recipient_id, group_id, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		var recipient, group sql.NullString
		if err := rows.Scan(
			&m.ID, &m.SenderID, &m.Content, &m.ConversationType, &m.ConversationID,
			&recipient, &group, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if recipient.Valid {
			m.RecipientID = &recipient.String
		}
		if group.Valid {
			m.GroupID = &group.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
