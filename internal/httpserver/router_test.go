package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/security"
	"chat_backend/internal/service"
	"chat_backend/internal/store/sqlite"
)

type published struct {
	conversationID string
	senderID       string
}

type recordingHub struct {
	mu     sync.Mutex
	calls  []published
	online []string
}

func (h *recordingHub) PublishMessage(conversationID string, _ any, senderID, _ string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, published{conversationID, senderID})
	return 1
}

func (h *recordingHub) published() []published {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]published(nil), h.calls...)
}

func (h *recordingHub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.online...)
}

func (h *recordingHub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Contains(h.online, userID)
}

type apiFixture struct {
	t   *testing.T
	srv *httptest.Server
	hub *recordingHub
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	users := sqlite.NewUserRepo(db)
	friends := sqlite.NewFriendRepo(db)
	groups := sqlite.NewGroupRepo(db)
	groupReqs := sqlite.NewGroupRequestRepo(db)
	messages := sqlite.NewMessageRepo(db)

	cipher, err := security.NewContentCipher("test-key", nil)
	require.NoError(t, err)
	dir, err := service.NewUserDirectory(users, 32)
	require.NoError(t, err)
	hub := &recordingHub{}

	svc := Services{
		Auth:     service.NewAuthService(users, security.NewTokenService("secret", time.Hour), security.NewPasswordHasher(4)),
		Users:    service.NewUserService(users, dir, zerolog.Nop()),
		Friends:  service.NewFriendService(friends, users, dir),
		Groups:   service.NewGroupService(groups, groupReqs, dir),
		Messages: service.NewMessageService(messages, users, groups, friends, cipher, dir, hub, zerolog.Nop(), 50),
		Search:   service.NewSearchService(users, groups),
	}
	cfg := &config.Config{
		CORSOrigins:    []string{"http://localhost:3000"},
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	srv := httptest.NewServer(NewRouter(cfg, svc, hub, gateway, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return &apiFixture{t: t, srv: srv, hub: hub}
}

// do sends body as JSON, or as a form when it is a multipartBody, and decodes the
// response into out when given.
func (f *apiFixture) do(method, path, token string, body any, out any) int {
	f.t.Helper()
	var rdr io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case multipartBody:
		rdr = b.buf
		contentType = b.contentType
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(f.t, err)
	if rdr != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *apiFixture) register(username string) (string, *domain.User) {
	f.t.Helper()
	var resp service.TokenResponse
	status := f.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "secret123",
	}, &resp)
	require.Equal(f.t, http.StatusCreated, status)
	require.NotEmpty(f.t, resp.AccessToken)
	return resp.AccessToken, resp.User
}

type multipartBody struct {
	buf         *bytes.Buffer
	contentType string
}

func newMultipart(t *testing.T, fields map[string]string, fileField string, file []byte) multipartBody {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return multipartBody{buf: buf, contentType: mw.FormDataContentType()}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPI(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "healthy", body["status"])

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusTeapot, f.do(http.MethodGet, "/ws", "", nil, nil))
}

func TestAuthFlow(t *testing.T) {
	f := newAPI(t)
	token, user := f.register("alice")
	assert.Equal(t, "alice", user.Username)

	var errBody map[string]string
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "secret123",
	}, &errBody))
	assert.NotEmpty(t, errBody["error"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "al", "password": "secret123",
	}, nil))

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong-password",
	}, nil))

	var login service.TokenResponse
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "secret123",
	}, &login))
	assert.Equal(t, user.ID, login.User.ID)

	var me domain.User
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/auth/me", token, nil, &me))
	assert.Equal(t, user.ID, me.ID)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/auth/me", "garbage", nil, nil))
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/auth/logout", token, nil, nil))
}

func TestFriendsAndPrivateMessages(t *testing.T) {
	f := newAPI(t)
	aliceTok, alice := f.register("alice")
	bobTok, bob := f.register("bob")

	var sent service.FriendRequestView
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/friends/request", aliceTok,
		friendRequestBody{ToUserID: bob.ID}, &sent))
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/friends/request", bobTok,
		friendRequestBody{ToUserID: alice.ID}, nil))

	var pending []service.FriendRequestView
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/friends/pending", bobTok, nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, sent.ID, pending[0].ID)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/friends/respond", aliceTok,
		service.RespondInput{RequestID: sent.ID, Status: domain.RequestAccepted}, nil))
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/friends/respond", bobTok,
		service.RespondInput{RequestID: sent.ID, Status: domain.RequestAccepted}, nil))

	var friends []domain.User
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/friends", aliceTok, nil, &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	var msg service.MessageView
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/messages", aliceTok, service.SendMessageInput{
		Content:          "hello bob",
		ConversationType: domain.ConversationPrivate,
		RecipientID:      bob.ID,
	}, &msg))
	convID := domain.PrivateConversationID(alice.ID, bob.ID)
	assert.Equal(t, convID, msg.ConversationID)
	assert.Equal(t, []published{{convID, alice.ID}}, f.hub.published())

	var chats service.Chats
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/messages/chats", bobTok, nil, &chats))
	require.Len(t, chats.PrivateChats, 1)
	assert.Equal(t, convID, chats.PrivateChats[0].ChatID)

	var history []service.MessageView
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/messages/"+convID+"?limit=10&skip=0", bobTok, nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hello bob", history[0].Content)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/messages/"+convID+"?limit=abc", bobTok, nil, nil))

	carolTok, _ := f.register("carol")
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/messages/"+convID, carolTok, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/messages", carolTok, service.SendMessageInput{
		Content: "hi", ConversationType: domain.ConversationPrivate, RecipientID: "nobody",
	}, nil))
}

func TestGroupsAndJoinRequests(t *testing.T) {
	f := newAPI(t)
	aliceTok, _ := f.register("alice")
	bobTok, bob := f.register("bob")

	var group service.GroupView
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/groups", aliceTok,
		service.CreateGroupInput{Name: "gophers", Description: "go talk"}, &group))
	assert.True(t, group.IsPublic)
	require.Len(t, group.Members, 1)

	var joinReq service.GroupRequestView
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/group-requests/request", bobTok,
		joinRequestBody{GroupID: group.ID}, &joinReq))
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/group-requests/request", bobTok,
		joinRequestBody{GroupID: group.ID}, nil))

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/group-requests/group/"+group.ID, bobTok, nil, nil))
	var pending []service.GroupRequestView
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/group-requests/group/"+group.ID, aliceTok, nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, bob.ID, pending[0].User.ID)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/group-requests/respond", aliceTok,
		service.RespondInput{RequestID: joinReq.ID, Status: domain.RequestAccepted}, nil))

	var mine []domain.Group
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/groups/user/my-groups", bobTok, nil, &mine))
	require.Len(t, mine, 1)

	var msg service.MessageView
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/messages", bobTok, service.SendMessageInput{
		Content: "thanks", ConversationType: domain.ConversationGroup, GroupID: group.ID,
	}, &msg))
	assert.Equal(t, "group-"+group.ID, msg.ConversationID)

	name := "renamed"
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/api/groups/"+group.ID, bobTok,
		service.UpdateGroupInput{Name: &name}, nil))

	form := newMultipart(t, map[string]string{"name": "renamed", "is_public": "false"}, "image", pngBytes(t))
	var updated service.GroupView
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/groups/"+group.ID, aliceTok, form, &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.IsPublic)
	assert.Contains(t, updated.ImageURL, uploadURLPrefix)

	resp, err := http.Get(f.srv.URL + updated.ImageURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var found service.SearchResult
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/search?query=ren", bobTok, nil, &found))
	require.Len(t, found.Groups, 1)
	assert.Equal(t, group.ID, found.Groups[0].ID)
}

func TestProfileUpdateAndOnline(t *testing.T) {
	f := newAPI(t)
	aliceTok, alice := f.register("alice")
	_, bob := f.register("bob")

	bio := "hello there"
	var updated domain.User
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/users/profile", aliceTok,
		service.UpdateProfileInput{Bio: &bio}, &updated))
	assert.Equal(t, bio, updated.Bio)

	form := newMultipart(t, nil, "image", []byte("#!/bin/sh\necho not an image\n"))
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/users/profile", aliceTok, form, nil))

	var profile domain.User
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/users/"+bob.ID, aliceTok, nil, &profile))
	assert.Equal(t, "bob", profile.Username)
	assert.False(t, profile.IsOnline, "stored flag is overridden by live presence")
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/users/nobody", aliceTok, nil, nil))

	f.hub.mu.Lock()
	f.hub.online = []string{bob.ID, "gone", alice.ID}
	f.hub.mu.Unlock()
	var online []domain.UserSummary
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/users/online", aliceTok, nil, &online))
	require.Len(t, online, 2)
	assert.Equal(t, bob.ID, online[0].ID)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/users/"+bob.ID, aliceTok, nil, &profile))
	assert.True(t, profile.IsOnline)
}

func TestUploadsRejectTraversal(t *testing.T) {
	f := newAPI(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/uploads/.hidden", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/uploads/missing.png", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/uploads", "", nil, nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", domain.ErrForbidden), http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(rec, req, errors.New("pq: relation users does not exist"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
