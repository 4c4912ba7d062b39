package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chat_backend/internal/metrics"
	"chat_backend/internal/service"
)

// ReplySender re-enters a bot reply through the normal send path.
type ReplySender interface {
	SendBotReply(ctx context.Context, botID, recipientID, content string) (*service.MessageView, error)
}

type Options struct {
	Delay   time.Duration
	Timeout time.Duration
}

// Responder answers private messages sent to the bot. Each reply runs on its
// own goroutine so a slow model never holds up message delivery.
type Responder struct {
	botID     string
	sender    ReplySender
	completer Completer
	opts      Options
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResponder builds a responder for botID. completer may be nil, in which
// case every reply is a canned one.
func NewResponder(botID string, sender ReplySender, completer Completer, opts Options, log zerolog.Logger) *Responder {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Responder{
		botID:     botID,
		sender:    sender,
		completer: completer,
		opts:      opts,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Trigger schedules a reply to msg. It returns immediately.
func (r *Responder) Trigger(msg *service.MessageView) {
	if msg == nil || msg.SenderID == r.botID {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.respond(msg)
	}()
}

func (r *Responder) respond(msg *service.MessageView) {
	if r.opts.Delay > 0 {
		t := time.NewTimer(r.opts.Delay)
		select {
		case <-r.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	text, source := r.answer(msg.Content)

	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()
	if _, err := r.sender.SendBotReply(ctx, r.botID, msg.SenderID, text); err != nil {
		r.log.Warn().Err(err).Str("conversation", msg.ConversationID).Msg("bot reply not stored")
	}
	metrics.AssistantReplies.WithLabelValues(source).Inc()
	r.log.Debug().Str("conversation", msg.ConversationID).Str("source", source).Msg("bot replied")
}

// answer asks the completer under the reply timeout and falls back to a
// canned reply on error, timeout or an empty answer.
func (r *Responder) answer(prompt string) (string, string) {
	if r.completer == nil {
		return FallbackReply(prompt), "fallback"
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, err := r.completer.Complete(ctx, prompt)
	metrics.AssistantLatency.Observe(time.Since(start).Seconds())
	if err != nil || text == "" {
		if err != nil {
			r.log.Warn().Err(err).Msg("completion failed, using fallback")
		}
		return FallbackReply(prompt), "fallback"
	}
	return text, "model"
}

// Wait blocks until every scheduled reply has finished.
func (r *Responder) Wait() {
	r.wg.Wait()
}

// Close abandons pending replies and waits for in-flight ones.
func (r *Responder) Close() {
	r.cancel()
	r.wg.Wait()
}
