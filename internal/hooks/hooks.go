// Package hooks dispatches intake lifecycle events to in-process listeners.
// Each event is a typed struct; listeners subscribe by kind and use Handle
// to receive the concrete type.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// Event kinds.
const (
	EventMessageReceived = "message_received"
	EventMessageSending  = "message_sending"
	EventSessionStart    = "session_start"
	EventSessionEnd      = "session_end"
	EventHandoff         = "handoff_requested"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents lists every event kind in lifecycle order.
var AllEvents = []string{
	EventMessageReceived,
	EventMessageSending,
	EventSessionStart,
	EventSessionEnd,
	EventHandoff,
	EventGatewayStart,
	EventGatewayStop,
}

// Event is implemented by every payload the Manager dispatches.
type Event interface {
	Kind() string
}

// MessageReceived fires before an inbound message reaches the dialogue.
type MessageReceived struct {
	Session string
	Channel string
	From    string
}

// MessageSending fires before each outbound delivery attempt sequence.
type MessageSending struct {
	Channel string
	To      string
}

// SessionStarted fires when a correspondent without a stored session writes.
type SessionStarted struct {
	Session string
}

// SessionEnded fires once a completion record has been logged.
type SessionEnded struct {
	Record domain.CompletionRecord
}

// HandoffRequested fires when a correspondent accepts a human agent.
type HandoffRequested struct {
	Session     string
	Name        string
	ResumeState domain.State
}

// GatewayStarted fires once the admin listener is bound.
type GatewayStarted struct {
	Addr string
}

// GatewayStopped fires when the admin server begins shutting down.
type GatewayStopped struct{}

func (MessageReceived) Kind() string  { return EventMessageReceived }
func (MessageSending) Kind() string   { return EventMessageSending }
func (SessionStarted) Kind() string   { return EventSessionStart }
func (SessionEnded) Kind() string     { return EventSessionEnd }
func (HandoffRequested) Kind() string { return EventHandoff }
func (GatewayStarted) Kind() string   { return EventGatewayStart }
func (GatewayStopped) Kind() string   { return EventGatewayStop }

// Handler reacts to an event. An error is logged and does not stop the
// remaining handlers.
type Handler func(ctx context.Context, ev Event) error

// Handle adapts a function taking one concrete event type. Events of any
// other type are ignored.
func Handle[E Event](fn func(ctx context.Context, ev E) error) Handler {
	return func(ctx context.Context, ev Event) error {
		e, ok := ev.(E)
		if !ok {
			return nil
		}
		return fn(ctx, e)
	}
}

// Manager keeps named handlers per event kind.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On subscribes handler to kind under name. Off uses the same name.
func (m *Manager) On(kind, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = append(m.handlers[kind], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", kind).Str("handler", name).Msg("hook registered")
}

// Off removes every handler registered as name for kind.
func (m *Manager) Off(kind, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.handlers[kind][:0:0]
	for _, h := range m.handlers[kind] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		delete(m.handlers, kind)
		return
	}
	m.handlers[kind] = kept
}

func (m *Manager) snapshot(kind string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]namedHandler(nil), m.handlers[kind]...)
}

// Emit runs the handlers for ev in registration order and returns when
// they are done.
func (m *Manager) Emit(ctx context.Context, ev Event) {
	for _, h := range m.snapshot(ev.Kind()) {
		m.run(ctx, h, ev)
	}
}

// EmitAsync runs each handler for ev on its own goroutine and returns
// immediately.
func (m *Manager) EmitAsync(ctx context.Context, ev Event) {
	for _, h := range m.snapshot(ev.Kind()) {
		go m.run(ctx, h, ev)
	}
}

// run calls one handler. A panic is logged like a returned error.
func (m *Manager) run(ctx context.Context, h namedHandler, ev Event) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return h.handler(ctx, ev)
	}()
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("event", ev.Kind()).
			Str("handler", h.name).
			Dur("took", time.Since(start)).
			Msg("hook handler failed")
	}
}

// Count returns the number of handlers for kind.
func (m *Manager) Count(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[kind])
}

// Events returns the kinds with at least one handler, sorted.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]string, 0, len(m.handlers))
	for kind := range m.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
