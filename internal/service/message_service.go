package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chat_backend/internal/domain"
	"chat_backend/internal/metrics"
	"chat_backend/internal/security"
)

const maxContentRunes = 5000

// Publisher fans a stored message out to the live subscribers of its
// conversation. originConnID names the connection the message arrived on and
// is empty for messages that did not come in over a live connection.
type Publisher interface {
	PublishMessage(conversationID string, payload any, senderID, originConnID string) int
}

type originConnKey struct{}

// WithOriginConn marks ctx as carrying a message sent over connection connID.
func WithOriginConn(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, originConnKey{}, connID)
}

// OriginConn returns the connection id stored by WithOriginConn, if any.
func OriginConn(ctx context.Context) string {
	id, _ := ctx.Value(originConnKey{}).(string)
	return id
}

// BotTrigger is notified of private messages addressed to a bot account.
type BotTrigger interface {
	Trigger(msg *MessageView)
}

type MessageService struct {
	messages domain.MessageRepository
	users    domain.UserRepository
	groups   domain.GroupRepository
	friends  domain.FriendRepository
	cipher   *security.ContentCipher
	dir      *UserDirectory
	pub      Publisher
	bot      BotTrigger
	log      zerolog.Logger

	PageLimit int
}

func NewMessageService(
	messages domain.MessageRepository,
	users domain.UserRepository,
	groups domain.GroupRepository,
	friends domain.FriendRepository,
	cipher *security.ContentCipher,
	dir *UserDirectory,
	pub Publisher,
	log zerolog.Logger,
	pageLimit int,
) *MessageService {
	if pageLimit <= 0 {
		pageLimit = 50
	}
	return &MessageService{
		messages:  messages,
		users:     users,
		groups:    groups,
		friends:   friends,
		cipher:    cipher,
		dir:       dir,
		pub:       pub,
		log:       log,
		PageLimit: pageLimit,
	}
}

// SetBot installs the responder notified about messages sent to bot accounts.
func (s *MessageService) SetBot(bot BotTrigger) {
	s.bot = bot
}

type SendMessageInput struct {
	Content          string                  `json:"content" validate:"required"`
	ConversationType domain.ConversationType `json:"conversation_type" validate:"required,oneof=private group"`
	RecipientID      string                  `json:"recipient_id"`
	GroupID          string                  `json:"group_id"`
}

// MessageView is the full message record returned by the API and carried by
// message-received events.
type MessageView struct {
	ID               string                  `json:"id"`
	Content          string                  `json:"content"`
	SenderID         string                  `json:"sender_id"`
	Sender           domain.UserSummary      `json:"sender"`
	ConversationType domain.ConversationType `json:"conversation_type"`
	ConversationID   string                  `json:"conversation_id"`
	RecipientID      *string                 `json:"recipient_id,omitempty"`
	GroupID          *string                 `json:"group_id,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

// Send persists a message and then fans it out. A persistence failure aborts
// the fan-out and is returned to the caller.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendMessageInput) (*MessageView, error) {
	msg, recipient, err := s.prepare(ctx, senderID, in)
	if err != nil {
		return nil, err
	}
	view, err := s.persist(ctx, msg, in.Content)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, view)

	if recipient != nil && recipient.IsBot && s.bot != nil {
		s.bot.Trigger(view)
	}
	return view, nil
}

// SendBotReply delivers a reply from botID into the private conversation with
// recipientID. If the reply cannot be stored it is still fanned out as a
// transient message so the human always gets an answer.
func (s *MessageService) SendBotReply(ctx context.Context, botID, recipientID, content string) (*MessageView, error) {
	in := SendMessageInput{
		Content:          content,
		ConversationType: domain.ConversationPrivate,
		RecipientID:      recipientID,
	}
	msg, _, err := s.prepare(ctx, botID, in)
	if err != nil {
		return nil, err
	}
	view, err := s.persist(ctx, msg, content)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation", msg.ConversationID).Msg("bot reply not stored, delivering transient copy")
		msg.CreatedAt = time.Now().UTC()
		view = s.viewOf(ctx, msg, content)
		s.publish(ctx, view)
		return view, err
	}
	s.publish(ctx, view)
	return view, nil
}

func (s *MessageService) prepare(ctx context.Context, senderID string, in SendMessageInput) (*domain.Message, *domain.User, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}
	if utf8.RuneCountInString(in.Content) > maxContentRunes {
		return nil, nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, maxContentRunes)
	}

	msg := &domain.Message{
		ID:               uuid.NewString(),
		SenderID:         senderID,
		ConversationType: in.ConversationType,
	}

	switch in.ConversationType {
	case domain.ConversationPrivate:
		if in.RecipientID == "" {
			return nil, nil, fmt.Errorf("%w: recipient is required for private chat", domain.ErrInvalidInput)
		}
		if in.RecipientID == senderID {
			return nil, nil, fmt.Errorf("%w: cannot message yourself", domain.ErrInvalidInput)
		}
		recipient, err := s.users.GetByID(ctx, in.RecipientID)
		if err != nil {
			return nil, nil, fmt.Errorf("get recipient: %w", err)
		}
		if recipient == nil {
			return nil, nil, fmt.Errorf("%w: recipient not found", domain.ErrNotFound)
		}
		msg.RecipientID = lo.ToPtr(recipient.ID)
		msg.ConversationID = domain.PrivateConversationID(senderID, recipient.ID)
		return msg, recipient, nil

	default:
		if in.GroupID == "" {
			return nil, nil, fmt.Errorf("%w: group is required for group chat", domain.ErrInvalidInput)
		}
		g, err := s.groups.GetByID(ctx, in.GroupID)
		if err != nil {
			return nil, nil, fmt.Errorf("get group: %w", err)
		}
		if g == nil {
			return nil, nil, fmt.Errorf("%w: group not found", domain.ErrNotFound)
		}
		member, err := s.groups.IsMember(ctx, g.ID, senderID)
		if err != nil {
			return nil, nil, fmt.Errorf("check member: %w", err)
		}
		if !member {
			return nil, nil, fmt.Errorf("%w: not a member of this group", domain.ErrForbidden)
		}
		msg.GroupID = lo.ToPtr(g.ID)
		msg.ConversationID = domain.GroupConversationID(g.ID)
		return msg, nil, nil
	}
}

func (s *MessageService) persist(ctx context.Context, msg *domain.Message, plain string) (*MessageView, error) {
	sealed, err := s.cipher.Seal(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	msg.Content = sealed
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesPersisted.WithLabelValues(string(msg.ConversationType)).Inc()
	return s.viewOf(ctx, msg, plain), nil
}

func (s *MessageService) publish(ctx context.Context, view *MessageView) {
	if s.pub == nil {
		return
	}
	n := s.pub.PublishMessage(view.ConversationID, view, view.SenderID, OriginConn(ctx))
	s.log.Debug().Str("conversation", view.ConversationID).Int("delivered", n).Msg("message fanned out")
}

// History returns up to limit messages of a conversation, skipping the skip
// newest ones, oldest first. The caller must be a participant.
func (s *MessageService) History(ctx context.Context, userID, conversationID string, limit, skip int) ([]*MessageView, error) {
	ok, err := s.CanAccess(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a participant in this conversation", domain.ErrForbidden)
	}

	if limit <= 0 || limit > s.PageLimit {
		limit = s.PageLimit
	}
	if skip < 0 {
		skip = 0
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Reverse to chronological order (DB returns DESC)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	out := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		plain, err := s.cipher.Open(m.Content)
		if err != nil {
			// fall back to the stored text for rows written before encryption
			plain = m.Content
		}
		out = append(out, s.viewOf(ctx, m, plain))
	}
	return out, nil
}

// CanAccess reports whether userID participates in conversationID: one of
// the two users of a private key, or a member of the group.
func (s *MessageService) CanAccess(ctx context.Context, userID, conversationID string) (bool, error) {
	if groupID, ok := domain.ParseGroupConversationID(conversationID); ok {
		member, err := s.groups.IsMember(ctx, groupID, userID)
		if err != nil {
			return false, fmt.Errorf("check member: %w", err)
		}
		return member, nil
	}
	_, ok := domain.PrivatePeer(conversationID, userID)
	return ok, nil
}

type PrivateChat struct {
	ChatID string       `json:"chat_id"`
	Type   string       `json:"type"`
	User   *domain.User `json:"user"`
}

type GroupChat struct {
	ChatID string        `json:"chat_id"`
	Type   string        `json:"type"`
	Group  *domain.Group `json:"group"`
}

type Chats struct {
	PrivateChats []PrivateChat `json:"private_chats"`
	GroupChats   []GroupChat   `json:"group_chats"`
}

// Chats lists the private conversation of every friend and the group
// conversation of every group userID belongs to.
func (s *MessageService) Chats(ctx context.Context, userID string) (*Chats, error) {
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	groups, err := s.groups.ListForMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return &Chats{
		PrivateChats: lo.Map(friends, func(f *domain.User, _ int) PrivateChat {
			return PrivateChat{
				ChatID: domain.PrivateConversationID(userID, f.ID),
				Type:   string(domain.ConversationPrivate),
				User:   f,
			}
		}),
		GroupChats: lo.Map(groups, func(g *domain.Group, _ int) GroupChat {
			return GroupChat{
				ChatID: domain.GroupConversationID(g.ID),
				Type:   string(domain.ConversationGroup),
				Group:  g,
			}
		}),
	}, nil
}

func (s *MessageService) viewOf(ctx context.Context, m *domain.Message, plain string) *MessageView {
	sender, err := s.dir.Summary(ctx, m.SenderID)
	if err != nil {
		s.log.Debug().Err(err).Str("user", m.SenderID).Msg("sender summary unavailable")
		sender = domain.UserSummary{ID: m.SenderID}
	}
	return &MessageView{
		ID:               m.ID,
		Content:          plain,
		SenderID:         m.SenderID,
		Sender:           sender,
		ConversationType: m.ConversationType,
		ConversationID:   m.ConversationID,
		RecipientID:      m.RecipientID,
		GroupID:          m.GroupID,
		CreatedAt:        m.CreatedAt,
	}
}
