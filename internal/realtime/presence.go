package realtime

import (
	"errors"
	"fmt"
	"sort"
)

// Conn is a live transport connection bound to one user for its lifetime.
// Emit must not block.
type Conn interface {
	ID() string
	Emit(event string, payload any) error
	Close() error
}

// Policy decides what happens when a user who is already online announces
// presence from a second connection.
type Policy string

const (
	// PolicyReplace overwrites the entry and leaves the old connection open.
	PolicyReplace Policy = "replace"
	// PolicyReject refuses the newer connection.
	PolicyReject Policy = "reject"
	// PolicyEvict overwrites the entry and closes the old connection.
	PolicyEvict Policy = "evict"
)

var ErrSessionExists = errors.New("user already has an active session")

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyReplace, PolicyReject, PolicyEvict:
		return p, nil
	case "":
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("unknown presence policy %q", s)
	}
}

// Registration describes what SetOnline changed.
type Registration struct {
	// Replaced is the connection that previously owned the identity, if any.
	Replaced Conn
	// CameOnline is true on an offline to online transition.
	CameOnline bool
}

// Presence maps a user identity to at most one connection. It is owned by the
// hub goroutine and is not safe for concurrent use.
type Presence struct {
	policy  Policy
	entries map[string]Conn
}

func NewPresence(policy Policy) *Presence {
	return &Presence{policy: policy, entries: make(map[string]Conn)}
}

func (p *Presence) Policy() Policy { return p.policy }

func (p *Presence) SetOnline(identity string, conn Conn) (Registration, error) {
	current, exists := p.entries[identity]
	if !exists {
		p.entries[identity] = conn
		return Registration{CameOnline: true}, nil
	}
	if current.ID() == conn.ID() {
		return Registration{}, nil
	}
	if p.policy == PolicyReject {
		return Registration{}, ErrSessionExists
	}
	p.entries[identity] = conn
	return Registration{Replaced: current}, nil
}

func (p *Presence) Resolve(identity string) (Conn, bool) {
	c, ok := p.entries[identity]
	return c, ok
}

// Clear removes the entry owned by conn. A connection that was superseded by a
// newer one owns nothing, so clearing it leaves the identity online.
func (p *Presence) Clear(conn Conn) (string, bool) {
	for identity, c := range p.entries {
		if c.ID() == conn.ID() {
			delete(p.entries, identity)
			return identity, true
		}
	}
	return "", false
}

// Online returns the identities with a live connection, sorted.
func (p *Presence) Online() []string {
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Presence) Len() int { return len(p.entries) }
