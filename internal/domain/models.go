package domain

import "time"

// User represents an application user. ID is the stable UserIdentity.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          *string   `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Bio            string    `db:"bio" json:"bio"`
	ImageURL       string    `db:"image_url" json:"image_url"`
	IsBot          bool      `db:"is_bot" json:"is_bot"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// UserSummary is the public projection embedded in messages, requests and groups.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ImageURL: u.ImageURL, IsBot: u.IsBot}
}

// Group is a named set of members sharing one group conversation.
type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatorID   string    `db:"creator_id" json:"creator_id"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	IsPublic    bool      `db:"is_public" json:"is_public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest links two users until the recipient responds.
type FriendRequest struct {
	ID        string        `db:"id" json:"id"`
	FromID    string        `db:"from_id" json:"from_id"`
	ToID      string        `db:"to_id" json:"to_id"`
	Status    RequestStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// GroupRequest is a user's request to join a group, answered by the group creator.
type GroupRequest struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	GroupID   string        `db:"group_id" json:"group_id"`
	Status    RequestStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Message represents a single chat message. Content is encrypted at rest.
type Message struct {
	ID               string           `db:"id"`
	SenderID         string           `db:"sender_id"`
	Content          string           `db:"content"`
	ConversationType ConversationType `db:"conversation_type"`
	ConversationID   string           `db:"conversation_id"`
	RecipientID      *string          `db:"recipient_id"`
	GroupID          *string          `db:"group_id"`
	CreatedAt        time.Time        `db:"created_at"`
}
