package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"chat_backend/internal/metrics"
)

type Options struct {
	Policy        Policy
	TypingTTL     time.Duration
	SweepInterval time.Duration
	RingTimeout   time.Duration
	// OnPresence is called on the hub goroutine after an online/offline
	// transition. It must not block.
	OnPresence func(userID string, online bool)
	Now        func() time.Time
}

func (o *Options) defaults() {
	if o.Policy == "" {
		o.Policy = PolicyReplace
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = 8 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 2 * time.Second
	}
	if o.RingTimeout <= 0 {
		o.RingTimeout = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type session struct {
	conn        Conn
	userID      string
	displayName string
}

// Hub owns presence, room subscriptions, typing markers and calls. All state
// is touched only by the goroutine running Run; public methods hand work to
// it and wait for the result.
type Hub struct {
	log      zerolog.Logger
	opts     Options
	validate *validator.Validate

	inbox   chan func()
	stopped chan struct{}

	sessions map[string]*session
	presence *Presence
	rooms    *Rooms
	typing   *Typing
	calls    *Calls
}

func NewHub(opts Options, log zerolog.Logger) *Hub {
	opts.defaults()
	return &Hub{
		log:      log,
		opts:     opts,
		validate: validator.New(),
		inbox:    make(chan func(), 256),
		stopped:  make(chan struct{}),
		sessions: make(map[string]*session),
		presence: NewPresence(opts.Policy),
		rooms:    NewRooms(),
		typing:   NewTyping(opts.TypingTTL),
		calls:    NewCalls(),
	}
}

// Run processes hub work until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()
	defer close(h.stopped)

	h.log.Info().Str("policy", string(h.opts.Policy)).Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			for _, call := range h.calls.all() {
				call.stopTimer()
			}
			h.log.Info().Msg("hub stopped")
			return nil
		case fn := <-h.inbox:
			fn()
		case <-ticker.C:
			h.sweepTyping(h.opts.Now())
		}
	}
}

// exec runs fn on the hub goroutine and waits for it. It reports false when
// the hub is no longer running.
func (h *Hub) exec(fn func()) bool {
	done := make(chan struct{})
	select {
	case h.inbox <- func() { fn(); close(done) }:
	case <-h.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-h.stopped:
		return false
	}
}

// post queues fn without waiting. Used by timers.
func (h *Hub) post(fn func()) {
	select {
	case h.inbox <- fn:
	case <-h.stopped:
	}
}

// Connect binds conn to an authenticated user. Presence is registered later
// by announce-presence.
func (h *Hub) Connect(conn Conn, userID, displayName string) {
	h.exec(func() {
		h.sessions[conn.ID()] = &session{conn: conn, userID: userID, displayName: displayName}
		h.log.Debug().Str("conn", conn.ID()).Str("user", userID).Msg("connection bound")
	})
}

// Disconnect releases everything held by conn.
func (h *Hub) Disconnect(conn Conn) {
	h.exec(func() {
		s, ok := h.sessions[conn.ID()]
		if !ok {
			return
		}
		delete(h.sessions, conn.ID())
		h.rooms.Drop(conn)
		metrics.ActiveConversations.Set(float64(h.rooms.Len()))

		identity, cleared := h.presence.Clear(conn)
		if _, stillOnline := h.presence.Resolve(s.userID); !stillOnline {
			h.releaseUser(s.userID)
		}
		if cleared {
			metrics.OnlineUsers.Set(float64(h.presence.Len()))
			h.broadcastPresence(identity, StatusOffline, nil)
		}
		h.log.Debug().Str("conn", conn.ID()).Str("user", s.userID).Bool("was_online", cleared).Msg("connection released")
	})
}

// releaseUser drops typing and call state of a user who has no connection left.
func (h *Hub) releaseUser(userID string) {
	if convID, ok := h.typing.Clear(userID); ok {
		h.publishTyping(userID, convID, false)
	}
	if call, ok := h.calls.EndFor(userID); ok {
		metrics.ActiveCalls.Set(float64(h.calls.Len()))
		metrics.CallOutcomes.WithLabelValues("disconnected").Inc()
		if peer, ok := h.presence.Resolve(call.Peer(userID)); ok {
			h.emit(peer, EventCallEnded, nil)
		}
	}
}

// Handle applies one inbound event from conn. Results other than ok are also
// emitted to conn as an ack.
func (h *Hub) Handle(conn Conn, event string, data json.RawMessage) Result {
	var res Result
	if !h.exec(func() { res = h.dispatch(conn, event, data) }) {
		res = rejected(event, "server shutting down")
	}
	metrics.RecordEvent(event, string(res.Status))
	if !res.OK() {
		if err := conn.Emit(EventAck, res); err != nil {
			h.log.Debug().Err(err).Str("conn", conn.ID()).Msg("ack not delivered")
		}
	}
	return res
}

func (h *Hub) dispatch(conn Conn, event string, data json.RawMessage) Result {
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return rejected(event, "connection is not registered")
	}
	switch event {
	case EventAnnouncePresence:
		return h.announce(s, data)
	case EventJoinConversation:
		return h.join(s, data)
	case EventTypingStart, EventTypingStop:
		return h.typingEvent(s, event, data)
	case EventInitiateCall:
		return h.initiateCall(s, data)
	case EventAcceptCall:
		return h.acceptCall(s, data)
	case EventEndCall:
		return h.endCall(s, data)
	case EventIceCandidate:
		return h.iceCandidate(s, data)
	default:
		return malformed(event, "unknown event")
	}
}

// PublishMessage delivers a message-received event to every connection
// subscribed to conversationID except the one the message came in on. When
// originConnID is empty the sender's presence connection is skipped instead.
func (h *Hub) PublishMessage(conversationID string, payload any, senderID, originConnID string) int {
	var delivered int
	h.exec(func() {
		skip := originConnID
		if skip == "" {
			if c, ok := h.presence.Resolve(senderID); ok {
				skip = c.ID()
			}
		}
		for _, c := range h.rooms.Members(conversationID) {
			if c.ID() == skip {
				continue
			}
			if h.emit(c, EventMessageReceived, payload) {
				delivered++
			}
		}
	})
	metrics.RecordDelivery(EventMessageReceived, delivered)
	return delivered
}

// Online returns the identities currently online.
func (h *Hub) Online() []string {
	var ids []string
	h.exec(func() { ids = h.presence.Online() })
	return ids
}

func (h *Hub) IsOnline(userID string) bool {
	var online bool
	h.exec(func() { _, online = h.presence.Resolve(userID) })
	return online
}

// CallState reports the call state of userID.
func (h *Hub) CallState(userID string) CallState {
	state := CallIdle
	h.exec(func() { state = h.calls.State(userID) })
	return state
}

func (h *Hub) emit(c Conn, event string, payload any) bool {
	if err := c.Emit(event, payload); err != nil {
		h.log.Debug().Err(err).Str("conn", c.ID()).Str("event", event).Msg("emit failed")
		return false
	}
	return true
}

// broadcastPresence sends presence-changed to every bound connection except skip.
func (h *Hub) broadcastPresence(userID, status string, skip Conn) {
	payload := PresenceChanged{UserIdentity: userID, Status: status}
	n := 0
	for _, s := range h.sessions {
		if skip != nil && s.conn.ID() == skip.ID() {
			continue
		}
		if h.emit(s.conn, EventPresenceChanged, payload) {
			n++
		}
	}
	metrics.RecordDelivery(EventPresenceChanged, n)
	if h.opts.OnPresence != nil {
		h.opts.OnPresence(userID, status == StatusOnline)
	}
}

func (h *Hub) publishTyping(userID, conversationID string, isTyping bool) {
	payload := TypingChanged{UserIdentity: userID, IsTyping: isTyping, ConversationID: conversationID}
	n := 0
	for _, c := range h.rooms.Members(conversationID) {
		if s, ok := h.sessions[c.ID()]; ok && s.userID == userID {
			continue
		}
		if h.emit(c, EventTypingChanged, payload) {
			n++
		}
	}
	metrics.RecordDelivery(EventTypingChanged, n)
}

func (h *Hub) sweepTyping(now time.Time) {
	expired := h.typing.Expire(now)
	for _, e := range expired {
		h.publishTyping(e.UserIdentity, e.ConversationID, false)
	}
	if len(expired) > 0 {
		h.log.Debug().Int("expired", len(expired)).Int("typing", h.typing.Len()).Msg("typing markers swept")
	}
}
