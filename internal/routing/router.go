// Package routing connects messaging channels to the dialogue engine. Every
// event for a correspondent runs under the per-session gate.
package routing

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/soyeahso/attendant/internal/channel"
	"github.com/soyeahso/attendant/internal/dialogue"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/idle"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/metrics"
	"github.com/soyeahso/attendant/internal/registry"
	"github.com/soyeahso/attendant/internal/store"
)

// CompletionSink receives finished intakes.
type CompletionSink interface {
	OnComplete(ctx context.Context, rec domain.CompletionRecord) error
}

// TicketFinder resolves protocol status lookups.
type TicketFinder interface {
	Find(code string) (*domain.CompletionRecord, bool, error)
}

// Deps are the collaborators a Router drives.
type Deps struct {
	Channels    *channel.Registry
	Store       store.Store
	Machine     *dialogue.Machine
	Registry    registry.Source
	Tickets     TicketFinder
	Sink        CompletionSink
	Hooks       *hooks.Manager
	Metrics     *metrics.Metrics
	Idle        idle.Config
	GroupNotice bool
	RetryDelay  time.Duration // pause before the single send retry
}

// Router routes inbound messages through the dialogue engine and sends the
// replies back through the originating channel.
type Router struct {
	channels    *channel.Registry
	store       store.Store
	machine     *dialogue.Machine
	registry    registry.Source
	tickets     TicketFinder
	sink        CompletionSink
	hooks       *hooks.Manager
	metrics     *metrics.Metrics
	gate        *Gate
	timers      *idle.Manager
	groupNotice bool
	retryDelay  time.Duration
	log         *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(d Deps, log *logging.Logger) *Router {
	if d.Registry == nil {
		d.Registry = registry.None{}
	}
	if d.Hooks == nil {
		d.Hooks = hooks.NewManager(log)
	}
	r := &Router{
		channels:    d.Channels,
		store:       d.Store,
		machine:     d.Machine,
		registry:    d.Registry,
		tickets:     d.Tickets,
		sink:        d.Sink,
		hooks:       d.Hooks,
		metrics:     d.Metrics,
		groupNotice: d.GroupNotice,
		retryDelay:  d.RetryDelay,
		log:         log.Sub("routing"),
	}
	r.gate = NewGate(d.Metrics, log)
	r.timers = idle.NewManager(d.Idle, r.onIdle, log)
	return r
}

// Gate exposes the per-session gate for status reporting.
func (r *Router) Gate() *Gate { return r.gate }

// Timers exposes the idle timer manager for status reporting.
func (r *Router) Timers() *idle.Manager { return r.timers }

// Wire registers the router's HandleInbound as the message handler on all channels.
func (r *Router) Wire(ctx context.Context) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			r.HandleInbound(ctx, msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// Stop cancels idle timers and waits for queued events to finish.
func (r *Router) Stop() {
	r.timers.Stop()
	r.gate.Close()
	r.gate.Wait()
}

// HandleInbound queues a message for its correspondent. It does not block.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Str("chatId", msg.ChatID).
		Str("chatType", string(msg.ChatType)).
		Msg("routing inbound message")

	if msg.IsGroup() {
		r.handleGroup(ctx, msg)
		return
	}

	id := SessionID(msg)
	r.gate.Submit(id, func() { r.process(ctx, id, msg) })
}

// handleGroup drops group-context messages, optionally with a notice.
func (r *Router) handleGroup(ctx context.Context, msg domain.InboundMessage) {
	if !r.groupNotice {
		r.log.Debug().Str("chatId", msg.ChatID).Msg("ignoring group message")
		return
	}
	target := replyTarget(msg)
	r.gate.Submit(msg.ChannelID+":"+target, func() {
		_ = r.deliver(ctx, msg.ChannelID, target, r.machine.GroupNotice(""), msg.ID)
	})
}

// process runs one inbound event. Callers hold the gate for id.
func (r *Router) process(ctx context.Context, id string, msg domain.InboundMessage) {
	var (
		lang    string
		invalid int
	)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().
				Str("session", id).
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Msg("panic while handling message")
			_ = r.deliver(ctx, msg.ChannelID, replyTarget(msg), r.machine.Apology(lang), msg.ID)
		}
		r.timers.Arm(id, invalid)
	}()

	r.timers.Disarm(id)
	r.hooks.Emit(ctx, hooks.MessageReceived{Session: id, Channel: msg.ChannelID, From: msg.From})

	sess := r.load(ctx, id)
	lang = sess.Fields.Language
	r.log.Debug().Str("session", id).Str("body", msg.Body).Msg("inbound body")

	out, err := r.machine.Step(ctx, sess, msg.Body, lookups{r})
	if err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("lookup failed")
	}
	lang = sess.Fields.Language
	invalid = sess.Fields.InvalidResponseCount

	if out.Invalid {
		r.metrics.InvalidInput(string(out.From))
	}
	r.metrics.Transition(string(out.From), string(out.To))
	r.log.Info().
		Str("session", id).
		Str("from", string(out.From)).
		Str("to", string(out.To)).
		Int("invalid", invalid).
		Msg("transition")

	r.runEffects(ctx, id, out.Effects)

	if err := r.store.Put(ctx, sess); err != nil {
		r.metrics.StoreError()
		r.log.Error().Err(err).Str("session", id).Msg("failed to persist session")
	}

	target := replyTarget(msg)
	for _, body := range out.Outbound {
		_ = r.deliver(ctx, msg.ChannelID, target, body, msg.ID)
	}
}

// load fetches the session or starts a new one. A read failure starts a
// fresh session rather than dropping the message.
func (r *Router) load(ctx context.Context, id string) *domain.Session {
	sess, ok, err := r.store.Get(ctx, id)
	if err != nil {
		r.log.Error().Err(err).Str("session", id).Msg("failed to load session")
	}
	if ok {
		return sess
	}
	sess = r.machine.NewSession(id)
	r.hooks.Emit(ctx, hooks.SessionStarted{Session: id})
	r.log.Info().Str("session", id).Msg("session started")
	return sess
}

func (r *Router) runEffects(ctx context.Context, id string, effects []dialogue.Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case dialogue.Complete:
			r.metrics.Completion(string(e.Record.Status))
			r.log.Info().
				Str("session", id).
				Str("ticketCode", e.Record.TicketCode).
				Str("status", string(e.Record.Status)).
				Msg("intake completed")
			if r.sink == nil {
				continue
			}
			if err := r.sink.OnComplete(ctx, e.Record); err != nil {
				r.log.Error().Err(err).Str("session", id).Msg("completion sink failed")
			}
		case dialogue.Handoff:
			r.metrics.Handoff()
			r.log.Info().Str("session", id).Str("resume", string(e.ResumeState)).Msg("human handoff requested")
			r.hooks.EmitAsync(ctx, hooks.HandoffRequested{
				Session:     id,
				Name:        e.Fields.Name,
				ResumeState: e.ResumeState,
			})
		}
	}
}

// onIdle runs on the timer goroutine; the nudge itself goes through the
// gate so it cannot interleave with a message for the same session.
func (r *Router) onIdle(id string, gen uint64) {
	r.gate.Submit(id, func() {
		if !r.timers.Consume(id, gen) {
			return
		}
		key, ok := ParseSessionID(id)
		if !ok {
			return
		}
		ctx := context.Background()
		lang := ""
		if sess, found, err := r.store.Get(ctx, id); err == nil && found {
			lang = sess.Fields.Language
		}
		if err := r.deliver(ctx, key.ChannelID, key.Address, r.machine.Nudge(lang), ""); err == nil {
			r.metrics.Nudge()
		}
	})
}

// deliver sends one message, retrying once. A second failure is logged as
// a TransportSendError and the message is dropped.
func (r *Router) deliver(ctx context.Context, channelID, to, body, replyTo string) error {
	ch, ok := r.channels.Get(channelID)
	if !ok {
		r.log.Error().Str("channel", channelID).Msg("channel not found for reply")
		return fmt.Errorf("channel not found: %s", channelID)
	}

	out := domain.OutboundMessage{ChannelID: channelID, To: to, Body: body, ReplyToID: replyTo}
	r.hooks.Emit(ctx, hooks.MessageSending{Channel: channelID, To: to})

	const attempts = 2
	var err error
	for i := 1; i <= attempts; i++ {
		if err = ch.Send(ctx, out); err == nil {
			return nil
		}
		r.log.Warn().Err(err).Str("channel", channelID).Str("to", to).Int("attempt", i).Msg("send failed")
		if i < attempts && r.retryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.retryDelay):
			}
		}
	}

	sendErr := &domain.TransportSendError{ChannelID: channelID, To: to, Attempts: attempts, Err: err}
	r.metrics.SendError(channelID)
	r.log.Error().Err(sendErr).Msg("dropping outbound message")
	return sendErr
}

// SendTo sends a message to a specific channel.
func (r *Router) SendTo(ctx context.Context, channelID, target, body string) error {
	return r.deliver(ctx, channelID, target, body, "")
}

type lookups struct{ r *Router }

func (l lookups) FindRegistration(ctx context.Context, id string) (map[string]string, bool, error) {
	rec, ok, err := l.r.registry.Find(ctx, id)
	return rec, ok, err
}

func (l lookups) FindTicket(_ context.Context, code string) (*domain.CompletionRecord, bool, error) {
	if l.r.tickets == nil {
		return nil, false, nil
	}
	return l.r.tickets.Find(code)
}
