package realtime

import (
	"sort"
	"time"
)

type typingEntry struct {
	conversationID string
	deadline       time.Time
}

// Expired is a typing marker dropped by Expire.
type Expired struct {
	UserIdentity   string
	ConversationID string
}

// Typing tracks which conversation each user is typing in. Entries that are
// not refreshed within ttl are dropped by Expire.
type Typing struct {
	ttl     time.Duration
	entries map[string]typingEntry
}

func NewTyping(ttl time.Duration) *Typing {
	return &Typing{ttl: ttl, entries: make(map[string]typingEntry)}
}

// Start marks user as typing in conversationID until now+ttl. If the user was
// typing in another conversation, that conversation id is returned.
func (t *Typing) Start(user, conversationID string, now time.Time) (string, bool) {
	prev, had := t.entries[user]
	t.entries[user] = typingEntry{conversationID: conversationID, deadline: now.Add(t.ttl)}
	if had && prev.conversationID != conversationID {
		return prev.conversationID, true
	}
	return "", false
}

// Stop removes the marker if it belongs to conversationID.
func (t *Typing) Stop(user, conversationID string) bool {
	e, ok := t.entries[user]
	if !ok || e.conversationID != conversationID {
		return false
	}
	delete(t.entries, user)
	return true
}

// Clear removes the marker of user regardless of conversation.
func (t *Typing) Clear(user string) (string, bool) {
	e, ok := t.entries[user]
	if !ok {
		return "", false
	}
	delete(t.entries, user)
	return e.conversationID, true
}

// Expire drops every marker whose deadline is not after now.
func (t *Typing) Expire(now time.Time) []Expired {
	var out []Expired
	for user, e := range t.entries {
		if !e.deadline.After(now) {
			out = append(out, Expired{UserIdentity: user, ConversationID: e.conversationID})
			delete(t.entries, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserIdentity < out[j].UserIdentity })
	return out
}

func (t *Typing) Len() int { return len(t.entries) }
