package service_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"chat_backend/internal/domain"
	"chat_backend/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, query, excludeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepo) SetOnlineStatus(ctx context.Context, userID string, isOnline bool) error {
	args := m.Called(ctx, userID, isOnline)
	return args.Error(0)
}

type MockFriendRepo struct {
	mock.Mock
}

func (m *MockFriendRepo) CreateRequest(ctx context.Context, r *domain.FriendRequest) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockFriendRepo) GetRequest(ctx context.Context, id string) (*domain.FriendRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FriendRequest), args.Error(1)
}

func (m *MockFriendRepo) FindRequestBetween(ctx context.Context, a, b string) (*domain.FriendRequest, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FriendRequest), args.Error(1)
}

func (m *MockFriendRepo) UpdateRequestStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockFriendRepo) ListPendingTo(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FriendRequest), args.Error(1)
}

func (m *MockFriendRepo) ListPendingFrom(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FriendRequest), args.Error(1)
}

func (m *MockFriendRepo) AddFriendship(ctx context.Context, a, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *MockFriendRepo) ListFriends(ctx context.Context, userID string) ([]*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type MockGroupRepo struct {
	mock.Mock
}

func (m *MockGroupRepo) Create(ctx context.Context, g *domain.Group) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockGroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Group), args.Error(1)
}

func (m *MockGroupRepo) Update(ctx context.Context, g *domain.Group) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockGroupRepo) ListForMember(ctx context.Context, userID string) ([]*domain.Group, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Group), args.Error(1)
}

func (m *MockGroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MockGroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGroupRepo) ListMembers(ctx context.Context, groupID string) ([]*domain.User, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockGroupRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Group, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Group), args.Error(1)
}

type MockGroupRequestRepo struct {
	mock.Mock
}

func (m *MockGroupRequestRepo) Create(ctx context.Context, r *domain.GroupRequest) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockGroupRequestRepo) GetByID(ctx context.Context, id string) (*domain.GroupRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GroupRequest), args.Error(1)
}

func (m *MockGroupRequestRepo) FindPending(ctx context.Context, userID, groupID string) (*domain.GroupRequest, error) {
	args := m.Called(ctx, userID, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GroupRequest), args.Error(1)
}

func (m *MockGroupRequestRepo) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockGroupRequestRepo) ListPendingForGroup(ctx context.Context, groupID string) ([]*domain.GroupRequest, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GroupRequest), args.Error(1)
}

func (m *MockGroupRequestRepo) ListPendingForUser(ctx context.Context, userID string) ([]*domain.GroupRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GroupRequest), args.Error(1)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

type published struct {
	conversationID string
	senderID       string
	originConnID   string
	view           *service.MessageView
}

// recordingPublisher captures fan-out calls instead of delivering them.
type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *recordingPublisher) PublishMessage(conversationID string, payload any, senderID, originConnID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	view, _ := payload.(*service.MessageView)
	p.calls = append(p.calls, published{conversationID: conversationID, senderID: senderID, originConnID: originConnID, view: view})
	return 1
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.calls...)
}

type recordingBot struct {
	mu       sync.Mutex
	triggers []*service.MessageView
}

func (b *recordingBot) Trigger(msg *service.MessageView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggers = append(b.triggers, msg)
}
