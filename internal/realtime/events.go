package realtime

import "encoding/json"

// Client to server events.
const (
	EventAnnouncePresence = "announce-presence"
	EventJoinConversation = "join-conversation"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
	EventInitiateCall     = "initiate-call"
	EventAcceptCall       = "accept-call"
	EventEndCall          = "end-call"
	EventIceCandidate     = "ice-candidate"
	EventSendMessage      = "send-message"
)

// Server to client events.
const (
	EventPresenceChanged = "presence-changed"
	EventMessageReceived = "message-received"
	EventTypingChanged   = "typing-changed"
	EventIncomingCall    = "incoming-call"
	EventCallAccepted    = "call-accepted"
	EventCallEnded       = "call-ended"
	EventAck             = "ack"
	EventSessionReplaced = "session-replaced"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type PresenceChanged struct {
	UserIdentity string `json:"userIdentity"`
	Status       string `json:"status"`
}

type TypingPayload struct {
	UserIdentity   string `json:"userIdentity"`
	ConversationID string `json:"conversationId" validate:"required"`
}

type TypingChanged struct {
	UserIdentity   string `json:"userIdentity"`
	IsTyping       bool   `json:"isTyping"`
	ConversationID string `json:"conversationId"`
}

type InitiateCallPayload struct {
	TargetIdentity    string          `json:"targetIdentity" validate:"required"`
	OfferPayload      json.RawMessage `json:"offerPayload" validate:"required"`
	CallerIdentity    string          `json:"callerIdentity"`
	CallerDisplayName string          `json:"callerDisplayName"`
}

type IncomingCall struct {
	OfferPayload      json.RawMessage `json:"offerPayload"`
	CallerIdentity    string          `json:"callerIdentity"`
	CallerDisplayName string          `json:"callerDisplayName"`
}

type AcceptCallPayload struct {
	CallerIdentity string          `json:"callerIdentity" validate:"required"`
	AnswerPayload  json.RawMessage `json:"answerPayload" validate:"required"`
}

type EndCallPayload struct {
	PeerIdentity string `json:"peerIdentity" validate:"required"`
}

type IceCandidatePayload struct {
	TargetIdentity string          `json:"targetIdentity" validate:"required"`
	Candidate      json.RawMessage `json:"candidate" validate:"required"`
}

type IceCandidate struct {
	FromIdentity string          `json:"fromIdentity"`
	Candidate    json.RawMessage `json:"candidate"`
}

type SessionReplaced struct {
	Reason string `json:"reason"`
}
