package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"chat_backend/internal/metrics"
)

func emptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decode unmarshals data into v and runs struct validation.
func (h *Hub) decode(data json.RawMessage, v any) error {
	if emptyJSON(data) {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return h.validate.Struct(v)
}

func decodeString(data json.RawMessage) (string, error) {
	if emptyJSON(data) {
		return "", errors.New("missing payload")
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.New("empty value")
	}
	return s, nil
}

// sameUser checks an identity claimed in a payload against the connection.
// An omitted identity means the connection's own.
func sameUser(s *session, claimed string) bool {
	return claimed == "" || claimed == s.userID
}

func (h *Hub) announce(s *session, data json.RawMessage) Result {
	identity, err := decodeString(data)
	if err != nil {
		return malformed(EventAnnouncePresence, "userIdentity is required")
	}
	if identity != s.userID {
		return rejected(EventAnnouncePresence, "identity does not match the authenticated user")
	}

	reg, err := h.presence.SetOnline(identity, s.conn)
	if errors.Is(err, ErrSessionExists) {
		return rejected(EventAnnouncePresence, err.Error())
	}

	if reg.Replaced != nil {
		h.log.Info().Str("user", identity).Str("old_conn", reg.Replaced.ID()).Str("new_conn", s.conn.ID()).
			Str("policy", string(h.presence.Policy())).Msg("presence replaced")
		if h.presence.Policy() == PolicyEvict {
			h.emit(reg.Replaced, EventSessionReplaced, SessionReplaced{Reason: "signed in from another connection"})
			if err := reg.Replaced.Close(); err != nil {
				h.log.Debug().Err(err).Str("conn", reg.Replaced.ID()).Msg("close evicted connection")
			}
		}
	}
	if reg.CameOnline {
		metrics.OnlineUsers.Set(float64(h.presence.Len()))
		h.broadcastPresence(identity, StatusOnline, s.conn)
	}
	return success(EventAnnouncePresence)
}

func (h *Hub) join(s *session, data json.RawMessage) Result {
	convID, err := decodeString(data)
	if err != nil {
		return malformed(EventJoinConversation, "conversationId is required")
	}
	if h.rooms.Join(s.conn, convID) {
		metrics.ActiveConversations.Set(float64(h.rooms.Len()))
	}
	return success(EventJoinConversation)
}

func (h *Hub) typingEvent(s *session, event string, data json.RawMessage) Result {
	var p TypingPayload
	if err := h.decode(data, &p); err != nil {
		return malformed(event, "conversationId is required")
	}
	if !sameUser(s, p.UserIdentity) {
		return rejected(event, "identity does not match the authenticated user")
	}
	if !h.rooms.IsMember(s.conn, p.ConversationID) {
		return rejected(event, "not joined to this conversation")
	}

	if event == EventTypingStop {
		h.typing.Stop(s.userID, p.ConversationID)
		h.publishTyping(s.userID, p.ConversationID, false)
		return success(event)
	}

	if prev, switched := h.typing.Start(s.userID, p.ConversationID, h.opts.Now()); switched {
		h.publishTyping(s.userID, prev, false)
	}
	h.publishTyping(s.userID, p.ConversationID, true)
	return success(event)
}

func (h *Hub) initiateCall(s *session, data json.RawMessage) Result {
	var p InitiateCallPayload
	if err := h.decode(data, &p); err != nil || emptyJSON(p.OfferPayload) {
		return malformed(EventInitiateCall, "targetIdentity and offerPayload are required")
	}
	if !sameUser(s, p.CallerIdentity) {
		return rejected(EventInitiateCall, "identity does not match the authenticated user")
	}

	target, online := h.presence.Resolve(p.TargetIdentity)
	if !online {
		metrics.CallOutcomes.WithLabelValues("unreachable").Inc()
		return unreachable(EventInitiateCall, p.TargetIdentity)
	}

	call, err := h.calls.Begin(s.userID, p.TargetIdentity, h.opts.Now())
	switch {
	case errors.Is(err, ErrSelfCall):
		return rejected(EventInitiateCall, err.Error())
	case errors.Is(err, ErrBusy):
		metrics.CallOutcomes.WithLabelValues("busy").Inc()
		return Result{Event: EventInitiateCall, Status: StatusBusy, Reason: err.Error(), Target: p.TargetIdentity}
	}

	name := p.CallerDisplayName
	if name == "" {
		name = s.displayName
	}
	if !h.emit(target, EventIncomingCall, IncomingCall{
		OfferPayload:      p.OfferPayload,
		CallerIdentity:    s.userID,
		CallerDisplayName: name,
	}) {
		h.calls.End(s.userID, p.TargetIdentity)
		metrics.CallOutcomes.WithLabelValues("unreachable").Inc()
		return unreachable(EventInitiateCall, p.TargetIdentity)
	}

	caller, gen := s.userID, call.gen
	call.timer = time.AfterFunc(h.opts.RingTimeout, func() {
		h.post(func() { h.ringTimeout(caller, gen) })
	})
	metrics.ActiveCalls.Set(float64(h.calls.Len()))
	h.log.Debug().Str("caller", caller).Str("callee", p.TargetIdentity).Msg("call ringing")
	return success(EventInitiateCall)
}

func (h *Hub) ringTimeout(caller string, gen uint64) {
	call, ok := h.calls.Expire(caller, gen)
	if !ok {
		return
	}
	metrics.ActiveCalls.Set(float64(h.calls.Len()))
	metrics.CallOutcomes.WithLabelValues("no-answer").Inc()
	h.log.Debug().Str("caller", call.Caller).Str("callee", call.Callee).Msg("call not answered")

	if callee, ok := h.presence.Resolve(call.Callee); ok {
		h.emit(callee, EventCallEnded, nil)
	}
	if c, ok := h.presence.Resolve(call.Caller); ok {
		h.emit(c, EventCallEnded, nil)
		h.emit(c, EventAck, Result{
			Event:  EventInitiateCall,
			Status: StatusNoAnswer,
			Reason: "call was not answered",
			Target: call.Callee,
		})
	}
}

func (h *Hub) acceptCall(s *session, data json.RawMessage) Result {
	var p AcceptCallPayload
	if err := h.decode(data, &p); err != nil || emptyJSON(p.AnswerPayload) {
		return malformed(EventAcceptCall, "callerIdentity and answerPayload are required")
	}
	if _, err := h.calls.Answer(s.userID, p.CallerIdentity); err != nil {
		return Result{Event: EventAcceptCall, Status: StatusRejected, Reason: err.Error(), Target: p.CallerIdentity}
	}

	caller, online := h.presence.Resolve(p.CallerIdentity)
	if !online || !h.emit(caller, EventCallAccepted, p.AnswerPayload) {
		h.calls.End(s.userID, p.CallerIdentity)
		metrics.ActiveCalls.Set(float64(h.calls.Len()))
		metrics.CallOutcomes.WithLabelValues("unreachable").Inc()
		return unreachable(EventAcceptCall, p.CallerIdentity)
	}
	metrics.CallOutcomes.WithLabelValues("answered").Inc()
	return success(EventAcceptCall)
}

// endCall ends the call shared with the peer. When the peer has no recorded
// call the termination is still relayed so endpoints can reset each other; a
// peer in a call with someone else is left alone.
func (h *Hub) endCall(s *session, data json.RawMessage) Result {
	var p EndCallPayload
	if err := h.decode(data, &p); err != nil {
		return malformed(EventEndCall, "peerIdentity is required")
	}
	if _, ended := h.calls.End(s.userID, p.PeerIdentity); ended {
		metrics.ActiveCalls.Set(float64(h.calls.Len()))
		metrics.CallOutcomes.WithLabelValues("ended").Inc()
	} else if h.calls.State(p.PeerIdentity) != CallIdle {
		return Result{Event: EventEndCall, Status: StatusRejected, Reason: "no call with that user", Target: p.PeerIdentity}
	}

	peer, online := h.presence.Resolve(p.PeerIdentity)
	if !online || !h.emit(peer, EventCallEnded, nil) {
		return unreachable(EventEndCall, p.PeerIdentity)
	}
	return success(EventEndCall)
}

func (h *Hub) iceCandidate(s *session, data json.RawMessage) Result {
	var p IceCandidatePayload
	if err := h.decode(data, &p); err != nil || emptyJSON(p.Candidate) {
		return malformed(EventIceCandidate, "targetIdentity and candidate are required")
	}
	if _, inCall := h.calls.Between(s.userID, p.TargetIdentity); !inCall {
		return rejected(EventIceCandidate, "no call with that user")
	}
	peer, online := h.presence.Resolve(p.TargetIdentity)
	if !online || !h.emit(peer, EventIceCandidate, IceCandidate{FromIdentity: s.userID, Candidate: p.Candidate}) {
		return unreachable(EventIceCandidate, p.TargetIdentity)
	}
	return success(EventIceCandidate)
}
