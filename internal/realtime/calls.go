package realtime

import (
	"errors"
	"time"
)

type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallActive:
		return "active"
	case CallEnded:
		return "ended"
	default:
		return "idle"
	}
}

var (
	ErrBusy     = errors.New("user is already in a call")
	ErrSelfCall = errors.New("cannot call yourself")
	ErrNoCall   = errors.New("no ringing call from that caller")
)

// Call is the server's view of one caller/callee pair. The media path itself
// is negotiated by the two endpoints.
type Call struct {
	Caller    string
	Callee    string
	State     CallState
	StartedAt time.Time

	gen   uint64
	timer *time.Timer
}

// Peer returns the other participant.
func (c *Call) Peer(user string) string {
	if user == c.Caller {
		return c.Callee
	}
	return c.Caller
}

func (c *Call) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Calls indexes calls by both participants. Owned by the hub goroutine.
type Calls struct {
	byUser  map[string]*Call
	nextGen uint64
}

func NewCalls() *Calls {
	return &Calls{byUser: make(map[string]*Call)}
}

// Begin records a ringing call. Either side already being in a call is busy.
func (c *Calls) Begin(caller, callee string, now time.Time) (*Call, error) {
	if caller == callee {
		return nil, ErrSelfCall
	}
	if _, ok := c.byUser[caller]; ok {
		return nil, ErrBusy
	}
	if _, ok := c.byUser[callee]; ok {
		return nil, ErrBusy
	}
	c.nextGen++
	call := &Call{Caller: caller, Callee: callee, State: CallRinging, StartedAt: now, gen: c.nextGen}
	c.byUser[caller] = call
	c.byUser[callee] = call
	return call, nil
}

// Answer moves the ringing call from caller to callee into the active state.
func (c *Calls) Answer(callee, caller string) (*Call, error) {
	call, ok := c.byUser[callee]
	if !ok || call.State != CallRinging || call.Caller != caller || call.Callee != callee {
		return nil, ErrNoCall
	}
	call.State = CallActive
	call.stopTimer()
	return call, nil
}

// Between returns the call shared by a and b, if any.
func (c *Calls) Between(a, b string) (*Call, bool) {
	call, ok := c.byUser[a]
	if !ok || call.Peer(a) != b {
		return nil, false
	}
	return call, true
}

// End removes the call shared by a and b.
func (c *Calls) End(a, b string) (*Call, bool) {
	call, ok := c.Between(a, b)
	if !ok {
		return nil, false
	}
	c.remove(call)
	return call, true
}

// EndFor removes whatever call user is part of.
func (c *Calls) EndFor(user string) (*Call, bool) {
	call, ok := c.byUser[user]
	if !ok {
		return nil, false
	}
	c.remove(call)
	return call, true
}

// Expire removes the call of caller if it is still the same ringing attempt.
func (c *Calls) Expire(caller string, gen uint64) (*Call, bool) {
	call, ok := c.byUser[caller]
	if !ok || call.gen != gen || call.State != CallRinging {
		return nil, false
	}
	c.remove(call)
	return call, true
}

func (c *Calls) State(user string) CallState {
	if call, ok := c.byUser[user]; ok {
		return call.State
	}
	return CallIdle
}

// Len returns the number of calls in progress.
func (c *Calls) Len() int { return len(c.byUser) / 2 }

func (c *Calls) all() []*Call {
	seen := make(map[*Call]struct{}, len(c.byUser))
	out := make([]*Call, 0, len(c.byUser)/2)
	for _, call := range c.byUser {
		if _, ok := seen[call]; ok {
			continue
		}
		seen[call] = struct{}{}
		out = append(out, call)
	}
	return out
}

func (c *Calls) remove(call *Call) {
	call.stopTimer()
	call.State = CallEnded
	delete(c.byUser, call.Caller)
	delete(c.byUser, call.Callee)
}
