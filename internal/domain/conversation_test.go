package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"chat_backend/internal/domain"
)

func TestPrivateConversationIDIsOrderIndependent(t *testing.T) {
	for i := 0; i < 20; i++ {
		a, b := uuid.NewString(), uuid.NewString()
		assert.Equal(t, domain.PrivateConversationID(a, b), domain.PrivateConversationID(b, a))
	}
	assert.Equal(t, "alice-bob", domain.PrivateConversationID("bob", "alice"))
}

func TestGroupConversationID(t *testing.T) {
	id := domain.GroupConversationID("g1")
	assert.Equal(t, "group-g1", id)

	groupID, ok := domain.ParseGroupConversationID(id)
	assert.True(t, ok)
	assert.Equal(t, "g1", groupID)

	_, ok = domain.ParseGroupConversationID("alice-bob")
	assert.False(t, ok)
	_, ok = domain.ParseGroupConversationID("group-")
	assert.False(t, ok)
}

func TestPrivatePeer(t *testing.T) {
	a, b := uuid.NewString(), uuid.NewString()
	conv := domain.PrivateConversationID(a, b)

	peer, ok := domain.PrivatePeer(conv, a)
	assert.True(t, ok)
	assert.Equal(t, b, peer)

	peer, ok = domain.PrivatePeer(conv, b)
	assert.True(t, ok)
	assert.Equal(t, a, peer)

	_, ok = domain.PrivatePeer(conv, uuid.NewString())
	assert.False(t, ok)
	_, ok = domain.PrivatePeer(domain.GroupConversationID(a), a)
	assert.False(t, ok)
}
