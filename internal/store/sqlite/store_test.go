package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations must be idempotent")
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo *UserRepo, name string) *domain.User {
	t.Helper()
	email := name + "@example.com"
	u := &domain.User{ID: uuid.NewString(), Username: name, Email: &email, HashedPassword: "x"}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(openTestDB(t))

	alice := createUser(t, repo, "alice")
	createUser(t, repo, "alicia")
	createUser(t, repo, "bob")

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "alice@example.com", *got.Email)

	missing, err := repo.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	got.Bio = "hello"
	got.ImageURL = "/uploads/a.png"
	require.NoError(t, repo.Update(ctx, got))
	got, _ = repo.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, "hello", got.Bio)
	assert.Equal(t, "/uploads/a.png", got.ImageURL)

	require.NoError(t, repo.SetOnlineStatus(ctx, alice.ID, true))
	got, _ = repo.GetByID(ctx, alice.ID)
	assert.True(t, got.IsOnline)

	found, err := repo.Search(ctx, "ALI", alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)

	found, err = repo.Search(ctx, "%", "", 10)
	require.NoError(t, err)
	assert.Empty(t, found, "wildcards in the query are literal")

	assert.ErrorIs(t, repo.Update(ctx, &domain.User{ID: "ghost"}), domain.ErrNotFound)
}

func TestFriendRepo(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserRepo(db)
	repo := NewFriendRepo(db)

	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")

	req := &domain.FriendRequest{ID: uuid.NewString(), FromID: a.ID, ToID: b.ID, Status: domain.RequestPending}
	require.NoError(t, repo.CreateRequest(ctx, req))

	found, err := repo.FindRequestBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, req.ID, found.ID)

	pending, err := repo.ListPendingTo(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	sent, err := repo.ListPendingFrom(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	require.NoError(t, repo.UpdateRequestStatus(ctx, req.ID, domain.RequestAccepted))
	got, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestAccepted, got.Status)
	pending, _ = repo.ListPendingTo(ctx, b.ID)
	assert.Empty(t, pending)

	require.NoError(t, repo.AddFriendship(ctx, a.ID, b.ID))
	require.NoError(t, repo.AddFriendship(ctx, b.ID, a.ID))
	friends, err := repo.ListFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
	friends, _ = repo.ListFriends(ctx, b.ID)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].Username)
}

func TestGroupRepos(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserRepo(db)
	groups := NewGroupRepo(db)
	requests := NewGroupRequestRepo(db)

	owner := createUser(t, users, "owner")
	joiner := createUser(t, users, "joiner")

	g := &domain.Group{ID: uuid.NewString(), Name: "gophers", Description: "Go talk", CreatorID: owner.ID, IsPublic: true}
	require.NoError(t, groups.Create(ctx, g))

	isMember, err := groups.IsMember(ctx, g.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
	isMember, _ = groups.IsMember(ctx, g.ID, joiner.ID)
	assert.False(t, isMember)

	gr := &domain.GroupRequest{ID: uuid.NewString(), UserID: joiner.ID, GroupID: g.ID, Status: domain.RequestPending}
	require.NoError(t, requests.Create(ctx, gr))
	pending, err := requests.FindPending(ctx, joiner.ID, g.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	forGroup, _ := requests.ListPendingForGroup(ctx, g.ID)
	assert.Len(t, forGroup, 1)
	forUser, _ := requests.ListPendingForUser(ctx, joiner.ID)
	assert.Len(t, forUser, 1)

	require.NoError(t, requests.UpdateStatus(ctx, gr.ID, domain.RequestAccepted))
	require.NoError(t, groups.AddMember(ctx, g.ID, joiner.ID))
	require.NoError(t, groups.AddMember(ctx, g.ID, joiner.ID))

	members, err := groups.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].Username)

	mine, err := groups.ListForMember(ctx, joiner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "gophers", mine[0].Name)

	g.Description = "all things Go"
	require.NoError(t, groups.Update(ctx, g))
	got, _ := groups.GetByID(ctx, g.ID)
	assert.Equal(t, "all things Go", got.Description)

	hits, err := groups.Search(ctx, "things", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	none, err := groups.GetByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestMessageRepoOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserRepo(db)
	repo := NewMessageRepo(db)

	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")
	conv := domain.PrivateConversationID(a.ID, b.ID)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Message{
			ID:               uuid.NewString(),
			SenderID:         a.ID,
			Content:          fmt.Sprintf("m%d", i),
			ConversationType: domain.ConversationPrivate,
			ConversationID:   conv,
			RecipientID:      &b.ID,
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.Message{
		ID: uuid.NewString(), SenderID: a.ID, Content: "elsewhere",
		ConversationType: domain.ConversationPrivate, ConversationID: "other",
	}))

	page, err := repo.ListForConversation(ctx, conv, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m4", page[0].Content)
	assert.Equal(t, "m3", page[1].Content)
	require.NotNil(t, page[0].RecipientID)
	assert.Equal(t, b.ID, *page[0].RecipientID)
	assert.Nil(t, page[0].GroupID)

	page, err = repo.ListForConversation(ctx, conv, 10, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m1", page[0].Content)
}
