package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat_backend/internal/domain"
)

type FriendService struct {
	friends domain.FriendRepository
	users   domain.UserRepository
	dir     *UserDirectory
}

func NewFriendService(friends domain.FriendRepository, users domain.UserRepository, dir *UserDirectory) *FriendService {
	return &FriendService{friends: friends, users: users, dir: dir}
}

type FriendRequestView struct {
	ID        string               `json:"id"`
	From      domain.UserSummary   `json:"from"`
	To        domain.UserSummary   `json:"to"`
	Status    domain.RequestStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

type RespondInput struct {
	RequestID string               `json:"request_id" validate:"required"`
	Status    domain.RequestStatus `json:"status" validate:"required,oneof=accepted rejected"`
}

// SendRequest asks toID to become a friend of fromID. A pending or accepted
// request in either direction blocks a new one; a rejected one does not.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID string) (*FriendRequestView, error) {
	if toID == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrInvalidInput)
	}
	if toID == fromID {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", domain.ErrInvalidInput)
	}
	to, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	if to == nil {
		return nil, domain.ErrNotFound
	}

	existing, err := s.friends.FindRequestBetween(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case domain.RequestPending:
			return nil, fmt.Errorf("%w: friend request already exists", domain.ErrConflict)
		case domain.RequestAccepted:
			return nil, fmt.Errorf("%w: already friends", domain.ErrConflict)
		}
	}

	fr := &domain.FriendRequest{
		ID:     uuid.NewString(),
		FromID: fromID,
		ToID:   toID,
		Status: domain.RequestPending,
	}
	if err := s.friends.CreateRequest(ctx, fr); err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return s.view(ctx, fr)
}

// Respond lets the recipient accept or reject a pending request. Accepting
// records the friendship in both directions.
func (s *FriendService) Respond(ctx context.Context, userID string, in RespondInput) (*FriendRequestView, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	fr, err := s.friends.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	if fr == nil {
		return nil, domain.ErrNotFound
	}
	if fr.ToID != userID {
		return nil, fmt.Errorf("%w: only the recipient can respond", domain.ErrForbidden)
	}
	if fr.Status != domain.RequestPending {
		return nil, fmt.Errorf("%w: request already %s", domain.ErrConflict, fr.Status)
	}

	if err := s.friends.UpdateRequestStatus(ctx, fr.ID, in.Status); err != nil {
		return nil, fmt.Errorf("update friend request: %w", err)
	}
	fr.Status = in.Status
	if in.Status == domain.RequestAccepted {
		if err := s.friends.AddFriendship(ctx, fr.FromID, fr.ToID); err != nil {
			return nil, fmt.Errorf("add friendship: %w", err)
		}
	}
	return s.view(ctx, fr)
}

// Pending lists requests waiting for userID to respond.
func (s *FriendService) Pending(ctx context.Context, userID string) ([]*FriendRequestView, error) {
	reqs, err := s.friends.ListPendingTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return s.views(ctx, reqs)
}

// Sent lists requests userID sent that are still pending.
func (s *FriendService) Sent(ctx context.Context, userID string) ([]*FriendRequestView, error) {
	reqs, err := s.friends.ListPendingFrom(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}
	return s.views(ctx, reqs)
}

func (s *FriendService) Friends(ctx context.Context, userID string) ([]*domain.User, error) {
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	if friends == nil {
		friends = []*domain.User{}
	}
	return friends, nil
}

func (s *FriendService) view(ctx context.Context, fr *domain.FriendRequest) (*FriendRequestView, error) {
	from, err := s.dir.Summary(ctx, fr.FromID)
	if err != nil {
		return nil, err
	}
	to, err := s.dir.Summary(ctx, fr.ToID)
	if err != nil {
		return nil, err
	}
	return &FriendRequestView{ID: fr.ID, From: from, To: to, Status: fr.Status, CreatedAt: fr.CreatedAt}, nil
}

func (s *FriendService) views(ctx context.Context, reqs []*domain.FriendRequest) ([]*FriendRequestView, error) {
	out := make([]*FriendRequestView, 0, len(reqs))
	for _, fr := range reqs {
		v, err := s.view(ctx, fr)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
