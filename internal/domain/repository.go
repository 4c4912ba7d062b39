package domain

import (
	"context"
)

// Lookups return (nil, nil) when the row does not exist.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Search(ctx context.Context, query, excludeID string, limit int) ([]*User, error)
	SetOnlineStatus(ctx context.Context, id string, isOnline bool) error
}

// FriendRepository defines persistence for friend requests and friendships.
type FriendRepository interface {
	CreateRequest(ctx context.Context, r *FriendRequest) error
	GetRequest(ctx context.Context, id string) (*FriendRequest, error)
	FindRequestBetween(ctx context.Context, a, b string) (*FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status RequestStatus) error
	ListPendingTo(ctx context.Context, userID string) ([]*FriendRequest, error)
	ListPendingFrom(ctx context.Context, userID string) ([]*FriendRequest, error)
	AddFriendship(ctx context.Context, a, b string) error
	ListFriends(ctx context.Context, userID string) ([]*User, error)
}

// GroupRepository defines persistence for groups and their members.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	Update(ctx context.Context, g *Group) error
	ListForMember(ctx context.Context, userID string) ([]*Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	ListMembers(ctx context.Context, groupID string) ([]*User, error)
	Search(ctx context.Context, query string, limit int) ([]*Group, error)
}

// GroupRequestRepository defines persistence for group join requests.
type GroupRequestRepository interface {
	Create(ctx context.Context, r *GroupRequest) error
	GetByID(ctx context.Context, id string) (*GroupRequest, error)
	FindPending(ctx context.Context, userID, groupID string) (*GroupRequest, error)
	UpdateStatus(ctx context.Context, id string, status RequestStatus) error
	ListPendingForGroup(ctx context.Context, groupID string) ([]*GroupRequest, error)
	ListPendingForUser(ctx context.Context, userID string) ([]*GroupRequest, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// ListForConversation returns newest messages first.
	ListForConversation(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error)
}
