package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/domain"
	"chat_backend/internal/service"
)

func newDirectory(t *testing.T, users *MockUserRepo) *service.UserDirectory {
	t.Helper()
	dir, err := service.NewUserDirectory(users, 16)
	require.NoError(t, err)
	return dir
}

func seedUsers(users *MockUserRepo, ids ...string) {
	for _, id := range ids {
		users.On("GetByID", mock.Anything, id).Return(&domain.User{ID: id, Username: id}, nil).Maybe()
	}
}

func TestFriendRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("NotToSelf", func(t *testing.T) {
		users, friends := new(MockUserRepo), new(MockFriendRepo)
		svc := service.NewFriendService(friends, users, newDirectory(t, users))
		_, err := svc.SendRequest(ctx, "alice", "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("NoDuplicateEitherDirection", func(t *testing.T) {
		users, friends := new(MockUserRepo), new(MockFriendRepo)
		seedUsers(users, "alice", "bob")
		svc := service.NewFriendService(friends, users, newDirectory(t, users))
		friends.On("FindRequestBetween", mock.Anything, "alice", "bob").
			Return(&domain.FriendRequest{ID: "r1", FromID: "bob", ToID: "alice", Status: domain.RequestPending}, nil)

		_, err := svc.SendRequest(ctx, "alice", "bob")
		assert.ErrorIs(t, err, domain.ErrConflict)
		friends.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
	})

	t.Run("RejectedRequestCanBeRenewed", func(t *testing.T) {
		users, friends := new(MockUserRepo), new(MockFriendRepo)
		seedUsers(users, "alice", "bob")
		svc := service.NewFriendService(friends, users, newDirectory(t, users))
		friends.On("FindRequestBetween", mock.Anything, "alice", "bob").
			Return(&domain.FriendRequest{ID: "r0", FromID: "alice", ToID: "bob", Status: domain.RequestRejected}, nil)
		friends.On("CreateRequest", mock.Anything, mock.AnythingOfType("*domain.FriendRequest")).Return(nil)

		view, err := svc.SendRequest(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, "alice", view.From.Username)
		assert.Equal(t, "bob", view.To.Username)
		assert.Equal(t, domain.RequestPending, view.Status)
	})

	t.Run("OnlyRecipientResponds", func(t *testing.T) {
		users, friends := new(MockUserRepo), new(MockFriendRepo)
		seedUsers(users, "alice", "bob")
		svc := service.NewFriendService(friends, users, newDirectory(t, users))
		friends.On("GetRequest", mock.Anything, "r1").
			Return(&domain.FriendRequest{ID: "r1", FromID: "alice", ToID: "bob", Status: domain.RequestPending}, nil)

		_, err := svc.Respond(ctx, "alice", service.RespondInput{RequestID: "r1", Status: domain.RequestAccepted})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("AcceptAddsFriendship", func(t *testing.T) {
		users, friends := new(MockUserRepo), new(MockFriendRepo)
		seedUsers(users, "alice", "bob")
		svc := service.NewFriendService(friends, users, newDirectory(t, users))
		friends.On("GetRequest", mock.Anything, "r1").
			Return(&domain.FriendRequest{ID: "r1", FromID: "alice", ToID: "bob", Status: domain.RequestPending}, nil)
		friends.On("UpdateRequestStatus", mock.Anything, "r1", domain.RequestAccepted).Return(nil)
		friends.On("AddFriendship", mock.Anything, "alice", "bob").Return(nil)

		view, err := svc.Respond(ctx, "bob", service.RespondInput{RequestID: "r1", Status: domain.RequestAccepted})
		require.NoError(t, err)
		assert.Equal(t, domain.RequestAccepted, view.Status)
		friends.AssertExpectations(t)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		users, friends := new(MockUserRepo), new(MockFriendRepo)
		svc := service.NewFriendService(friends, users, newDirectory(t, users))
		_, err := svc.Respond(ctx, "bob", service.RespondInput{RequestID: "r1", Status: domain.RequestPending})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateValidatesName", func(t *testing.T) {
		users, groups, reqs := new(MockUserRepo), new(MockGroupRepo), new(MockGroupRequestRepo)
		svc := service.NewGroupService(groups, reqs, newDirectory(t, users))
		_, err := svc.Create(ctx, "alice", service.CreateGroupInput{Name: " ab "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("CreateIncludesCreator", func(t *testing.T) {
		users, groups, reqs := new(MockUserRepo), new(MockGroupRepo), new(MockGroupRequestRepo)
		seedUsers(users, "alice")
		svc := service.NewGroupService(groups, reqs, newDirectory(t, users))
		groups.On("Create", mock.Anything, mock.AnythingOfType("*domain.Group")).Return(nil)
		groups.On("ListMembers", mock.Anything, mock.AnythingOfType("string")).
			Return([]*domain.User{{ID: "alice", Username: "alice"}}, nil)

		view, err := svc.Create(ctx, "alice", service.CreateGroupInput{Name: "gophers"})
		require.NoError(t, err)
		assert.True(t, view.IsPublic)
		assert.Equal(t, "group-"+view.ID, view.ConversationID)
		require.Len(t, view.Members, 1)
		assert.Equal(t, "alice", view.Creator.ID)
	})

	t.Run("OnlyCreatorUpdates", func(t *testing.T) {
		users, groups, reqs := new(MockUserRepo), new(MockGroupRepo), new(MockGroupRequestRepo)
		svc := service.NewGroupService(groups, reqs, newDirectory(t, users))
		groups.On("GetByID", mock.Anything, "g1").Return(&domain.Group{ID: "g1", Name: "team", CreatorID: "alice"}, nil)

		name := "new name"
		_, err := svc.Update(ctx, "bob", "g1", service.UpdateGroupInput{Name: &name})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		groups.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("MembersCannotRequestJoin", func(t *testing.T) {
		users, groups, reqs := new(MockUserRepo), new(MockGroupRepo), new(MockGroupRequestRepo)
		svc := service.NewGroupService(groups, reqs, newDirectory(t, users))
		groups.On("GetByID", mock.Anything, "g1").Return(&domain.Group{ID: "g1", CreatorID: "alice"}, nil)
		groups.On("IsMember", mock.Anything, "g1", "alice").Return(true, nil)

		_, err := svc.RequestJoin(ctx, "alice", "g1")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("CreatorAcceptsJoin", func(t *testing.T) {
		users, groups, reqs := new(MockUserRepo), new(MockGroupRepo), new(MockGroupRequestRepo)
		seedUsers(users, "bob")
		svc := service.NewGroupService(groups, reqs, newDirectory(t, users))
		groups.On("GetByID", mock.Anything, "g1").Return(&domain.Group{ID: "g1", Name: "team", CreatorID: "alice"}, nil)
		reqs.On("GetByID", mock.Anything, "gr1").
			Return(&domain.GroupRequest{ID: "gr1", UserID: "bob", GroupID: "g1", Status: domain.RequestPending}, nil)
		reqs.On("UpdateStatus", mock.Anything, "gr1", domain.RequestAccepted).Return(nil)
		groups.On("AddMember", mock.Anything, "g1", "bob").Return(nil)

		_, err := svc.RespondJoin(ctx, "bob", service.RespondInput{RequestID: "gr1", Status: domain.RequestAccepted})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		view, err := svc.RespondJoin(ctx, "alice", service.RespondInput{RequestID: "gr1", Status: domain.RequestAccepted})
		require.NoError(t, err)
		assert.Equal(t, "team", view.GroupName)
		assert.Equal(t, domain.RequestAccepted, view.Status)
		groups.AssertCalled(t, "AddMember", mock.Anything, "g1", "bob")
	})
}

func TestSearch(t *testing.T) {
	users, groups := new(MockUserRepo), new(MockGroupRepo)
	svc := service.NewSearchService(users, groups)

	res, err := svc.Search(context.Background(), "alice", "   ")
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Empty(t, res.Groups)
	users.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	users.On("Search", mock.Anything, "go", "alice", 10).Return([]*domain.User{{ID: "bob", Username: "gopher"}}, nil)
	groups.On("Search", mock.Anything, "go", 10).Return(nil, nil)

	res, err = svc.Search(context.Background(), "alice", "go")
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.NotNil(t, res.Groups)
	assert.Empty(t, res.Groups)
}
