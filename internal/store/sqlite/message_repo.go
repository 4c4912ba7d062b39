package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, content, conversation_type, conversation_id, recipient_id, group_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SenderID, m.Content, m.ConversationType, m.ConversationID, m.RecipientID, m.GroupID, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListForConversation returns newest messages first. Insertion order breaks
// ties between equal timestamps.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, content, conversation_type, conversation_id, recipient_id, group_id, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ? OFFSET ?
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
