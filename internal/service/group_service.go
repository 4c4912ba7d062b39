package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat_backend/internal/domain"
)

type GroupService struct {
	groups   domain.GroupRepository
	requests domain.GroupRequestRepository
	dir      *UserDirectory
}

func NewGroupService(groups domain.GroupRepository, requests domain.GroupRequestRepository, dir *UserDirectory) *GroupService {
	return &GroupService{groups: groups, requests: requests, dir: dir}
}

type CreateGroupInput struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    *bool  `json:"is_public"`
	ImageURL    string `json:"image_url"`
}

type UpdateGroupInput struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsPublic    *bool   `json:"is_public"`
	ImageURL    *string `json:"image_url"`
}

// GroupView is a group with its creator and members resolved.
type GroupView struct {
	*domain.Group
	ConversationID string               `json:"conversation_id"`
	Creator        domain.UserSummary   `json:"creator"`
	Members        []domain.UserSummary `json:"members"`
}

type GroupRequestView struct {
	ID        string               `json:"id"`
	User      domain.UserSummary   `json:"user"`
	GroupID   string               `json:"group_id"`
	GroupName string               `json:"group_name"`
	Status    domain.RequestStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// Create stores a new group with the creator as its first member.
func (s *GroupService) Create(ctx context.Context, creatorID string, in CreateGroupInput) (*GroupView, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g := &domain.Group{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		CreatorID:   creatorID,
		ImageURL:    in.ImageURL,
		IsPublic:    lo.FromPtrOr(in.IsPublic, true),
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return s.view(ctx, g)
}

// Update changes group settings. Only the creator may update a group.
func (s *GroupService) Update(ctx context.Context, userID, groupID string, in UpdateGroupInput) (*GroupView, error) {
	if in.Name != nil {
		in.Name = lo.ToPtr(strings.TrimSpace(*in.Name))
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the group creator can update the group", domain.ErrForbidden)
	}
	if in.Name != nil {
		g.Name = *in.Name
	}
	if in.Description != nil {
		g.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsPublic != nil {
		g.IsPublic = *in.IsPublic
	}
	if in.ImageURL != nil {
		g.ImageURL = *in.ImageURL
	}
	if err := s.groups.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return s.view(ctx, g)
}

func (s *GroupService) Get(ctx context.Context, groupID string) (*GroupView, error) {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, g)
}

func (s *GroupService) MyGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	groups, err := s.groups.ListForMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groups == nil {
		groups = []*domain.Group{}
	}
	return groups, nil
}

// RequestJoin files a join request for userID. Members cannot request again
// and only one pending request per group is kept.
func (s *GroupService) RequestJoin(ctx context.Context, userID, groupID string) (*GroupRequestView, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: group_id is required", domain.ErrInvalidInput)
	}
	g, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("check member: %w", err)
	}
	if member {
		return nil, fmt.Errorf("%w: already a member of this group", domain.ErrConflict)
	}
	pending, err := s.requests.FindPending(ctx, userID, groupID)
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: join request already pending", domain.ErrConflict)
	}

	gr := &domain.GroupRequest{
		ID:      uuid.NewString(),
		UserID:  userID,
		GroupID: groupID,
		Status:  domain.RequestPending,
	}
	if err := s.requests.Create(ctx, gr); err != nil {
		return nil, fmt.Errorf("create group request: %w", err)
	}
	return s.requestView(ctx, gr, g)
}

// RespondJoin accepts or rejects a pending join request. Only the group
// creator may respond; accepting adds the requester as a member.
func (s *GroupService) RespondJoin(ctx context.Context, userID string, in RespondInput) (*GroupRequestView, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	gr, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get group request: %w", err)
	}
	if gr == nil {
		return nil, domain.ErrNotFound
	}
	g, err := s.load(ctx, gr.GroupID)
	if err != nil {
		return nil, err
	}
	if g.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the group creator can respond", domain.ErrForbidden)
	}
	if gr.Status != domain.RequestPending {
		return nil, fmt.Errorf("%w: request already %s", domain.ErrConflict, gr.Status)
	}

	if err := s.requests.UpdateStatus(ctx, gr.ID, in.Status); err != nil {
		return nil, fmt.Errorf("update group request: %w", err)
	}
	gr.Status = in.Status
	if in.Status == domain.RequestAccepted {
		if err := s.groups.AddMember(ctx, gr.GroupID, gr.UserID); err != nil {
			return nil, fmt.Errorf("add member: %w", err)
		}
	}
	return s.requestView(ctx, gr, g)
}

// PendingForGroup lists pending join requests. Only the creator may see them.
func (s *GroupService) PendingForGroup(ctx context.Context, userID, groupID string) ([]*GroupRequestView, error) {
	g, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the group creator can view requests", domain.ErrForbidden)
	}
	reqs, err := s.requests.ListPendingForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group requests: %w", err)
	}
	out := make([]*GroupRequestView, 0, len(reqs))
	for _, gr := range reqs {
		v, err := s.requestView(ctx, gr, g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *GroupService) MyRequests(ctx context.Context, userID string) ([]*GroupRequestView, error) {
	reqs, err := s.requests.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list my requests: %w", err)
	}
	out := make([]*GroupRequestView, 0, len(reqs))
	for _, gr := range reqs {
		g, err := s.groups.GetByID(ctx, gr.GroupID)
		if err != nil {
			return nil, fmt.Errorf("get group: %w", err)
		}
		if g == nil {
			continue
		}
		v, err := s.requestView(ctx, gr, g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// IsMember reports whether userID belongs to groupID.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return s.groups.IsMember(ctx, groupID, userID)
}

func (s *GroupService) load(ctx context.Context, groupID string) (*domain.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g == nil {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (s *GroupService) view(ctx context.Context, g *domain.Group) (*GroupView, error) {
	creator, err := s.dir.Summary(ctx, g.CreatorID)
	if err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &GroupView{
		Group:          g,
		ConversationID: domain.GroupConversationID(g.ID),
		Creator:        creator,
		Members: lo.Map(members, func(u *domain.User, _ int) domain.UserSummary {
			return u.Summary()
		}),
	}, nil
}

func (s *GroupService) requestView(ctx context.Context, gr *domain.GroupRequest, g *domain.Group) (*GroupRequestView, error) {
	user, err := s.dir.Summary(ctx, gr.UserID)
	if err != nil {
		return nil, err
	}
	return &GroupRequestView{
		ID:        gr.ID,
		User:      user,
		GroupID:   g.ID,
		GroupName: g.Name,
		Status:    gr.Status,
		CreatedAt: gr.CreatedAt,
	}, nil
}
