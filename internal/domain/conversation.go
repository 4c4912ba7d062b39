package domain

import (
	"sort"
	"strings"
)

type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

const groupConversationPrefix = "group-"

// PrivateConversationID returns the key shared by two users regardless of
// argument order.
func PrivateConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

// GroupConversationID returns the type-tagged key of a group conversation.
func GroupConversationID(groupID string) string {
	return groupConversationPrefix + groupID
}

// ParseGroupConversationID reports the group id encoded in a group key.
func ParseGroupConversationID(conversationID string) (string, bool) {
	if !strings.HasPrefix(conversationID, groupConversationPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(conversationID, groupConversationPrefix)
	return id, id != ""
}

// PrivatePeer returns the other participant of a private conversation key when
// userID is one of its two participants.
func PrivatePeer(conversationID, userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	if peer, ok := strings.CutPrefix(conversationID, userID+"-"); ok && peer != "" {
		return peer, PrivateConversationID(userID, peer) == conversationID
	}
	if peer, ok := strings.CutSuffix(conversationID, "-"+userID); ok && peer != "" {
		return peer, PrivateConversationID(userID, peer) == conversationID
	}
	return "", false
}
