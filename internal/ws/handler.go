package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat_backend/internal/domain"
	"chat_backend/internal/metrics"
	"chat_backend/internal/realtime"
	"chat_backend/internal/service"
)

// RealtimeHub is the part of realtime.Hub the gateway drives.
type RealtimeHub interface {
	Connect(conn realtime.Conn, userID, displayName string)
	Disconnect(conn realtime.Conn)
	Handle(conn realtime.Conn, event string, data json.RawMessage) realtime.Result
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// ConversationAuthorizer decides whether a user may subscribe to a conversation.
type ConversationAuthorizer interface {
	CanAccess(ctx context.Context, userID, conversationID string) (bool, error)
}

type MessageSender interface {
	Send(ctx context.Context, senderID string, in service.SendMessageInput) (*service.MessageView, error)
}

type Options struct {
	AllowedOrigins  []string
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func (o *Options) defaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
}

// Gateway upgrades authenticated requests to websocket connections and feeds
// their events into the realtime hub.
type Gateway struct {
	hub      RealtimeHub
	auth     Authenticator
	access   ConversationAuthorizer
	messages MessageSender
	opts     Options
	log      zerolog.Logger

	upgrader    websocket.Upgrader
	checkOrigin func(r *http.Request) bool

	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewGateway(
	hub RealtimeHub,
	auth Authenticator,
	access ConversationAuthorizer,
	messages MessageSender,
	opts Options,
	log zerolog.Logger,
) *Gateway {
	opts.defaults()
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	return &Gateway{
		hub:      hub,
		auth:     auth,
		access:   access,
		messages: messages,
		opts:     opts,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin:  checkOrigin,
			Subprotocols: []string{"bearer"},
		},
		checkOrigin: checkOrigin,
		clients:     make(map[*Client]struct{}),
	}
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}
	if _, wildcard := allowed["*"]; wildcard {
		return func(r *http.Request) bool {
			return true
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// ServeHTTP authenticates the request with a bearer token (Authorization
// header or Sec-WebSocket-Protocol), upgrades it and pumps events until the
// connection closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	tokenStr, err := extractTokenFromWSRequest(r)
	if err != nil {
		var authErr wsAuthError
		if errors.As(err, &authErr) {
			http.Error(w, authErr.msg, authErr.status)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	user, err := g.auth.Authenticate(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		g.log.Error().Err(err).Msg("authenticate websocket")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	c := newClient(conn, user.ID, g.opts, g.log)
	if !g.track(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		conn.Close()
		return
	}
	defer g.untrack(c)

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	g.hub.Connect(c, user.ID, user.Username)
	defer g.hub.Disconnect(c)
	c.log.Debug().Msg("websocket connected")

	go c.writePump()
	c.readPump(func(env Envelope, err error) {
		if err != nil {
			g.ack(c, realtime.Result{Status: realtime.StatusMalformed, Reason: "frame is not a valid event envelope"})
			return
		}
		g.dispatch(ctx, c, user, env)
	})
	c.Close()
	c.log.Debug().Msg("websocket disconnected")
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, user *domain.User, env Envelope) {
	switch env.Event {
	case "":
		g.ack(c, realtime.Result{Status: realtime.StatusMalformed, Reason: "event is required"})

	case realtime.EventJoinConversation:
		var convID string
		if err := json.Unmarshal(env.Data, &convID); err == nil && convID != "" {
			ok, err := g.access.CanAccess(ctx, user.ID, convID)
			if err != nil {
				c.log.Error().Err(err).Str("conversation", convID).Msg("check conversation access")
				g.ack(c, realtime.Result{Event: env.Event, Status: realtime.StatusFailed, Reason: "internal server error"})
				return
			}
			if !ok {
				g.ack(c, realtime.Result{Event: env.Event, Status: realtime.StatusRejected, Reason: "not a participant in this conversation", Target: convID})
				return
			}
		}
		g.hub.Handle(c, env.Event, env.Data)

	case realtime.EventSendMessage:
		g.sendMessage(ctx, c, user, env)

	default:
		g.hub.Handle(c, env.Event, env.Data)
	}
}

// sendMessage runs the regular send path and always answers with an ack
// carrying the stored message id on success.
func (g *Gateway) sendMessage(ctx context.Context, c *Client, user *domain.User, env Envelope) {
	var in service.SendMessageInput
	if len(env.Data) == 0 || json.Unmarshal(env.Data, &in) != nil {
		g.ack(c, realtime.Result{Event: env.Event, Status: realtime.StatusMalformed, Reason: "invalid message payload"})
		return
	}

	msg, err := g.messages.Send(service.WithOriginConn(ctx, c.ID()), user.ID, in)
	if err != nil {
		res := realtime.Result{Event: env.Event, Reason: err.Error()}
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			res.Status = realtime.StatusMalformed
		case errors.Is(err, domain.ErrForbidden):
			res.Status = realtime.StatusRejected
		case errors.Is(err, domain.ErrNotFound):
			res.Status = realtime.StatusUnreachable
		default:
			c.log.Error().Err(err).Msg("send message")
			res.Status = realtime.StatusFailed
			res.Reason = "message could not be stored"
		}
		g.ack(c, res)
		return
	}
	g.ack(c, realtime.Result{Event: env.Event, Status: realtime.StatusOK, Target: msg.ID})
}

func (g *Gateway) ack(c *Client, res realtime.Result) {
	metrics.RecordEvent(res.Event, string(res.Status))
	if err := c.Emit(realtime.EventAck, res); err != nil {
		c.log.Debug().Err(err).Msg("ack not delivered")
	}
}

func (g *Gateway) track(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.clients[c] = struct{}{}
	g.wg.Add(1)
	return true
}

func (g *Gateway) untrack(c *Client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
	g.wg.Done()
}

// Len reports the number of open connections.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Shutdown refuses new connections, closes the open ones and waits for their
// handlers to return or ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closing = true
	for c := range g.clients {
		c.Close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
