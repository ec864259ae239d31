package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/attendant/internal/channel"
	"github.com/soyeahso/attendant/internal/dialogue"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/idle"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/registry"
	"github.com/soyeahso/attendant/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel is a test double for domain.Channel.
type mockChannel struct {
	id       string
	failures atomic.Int32 // Send fails while positive
	handler  func(domain.InboundMessage)

	mu   sync.Mutex
	sent []domain.OutboundMessage
}

func (m *mockChannel) ID() string { return m.id }
func (m *mockChannel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{ChatTypes: []domain.ChatType{domain.ChatTypeDM}}
}
func (m *mockChannel) Start(_ context.Context) error { return nil }
func (m *mockChannel) Stop(_ context.Context) error  { return nil }
func (m *mockChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	if m.failures.Add(-1) >= 0 {
		return errors.New("link down")
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}
func (m *mockChannel) OnMessage(handler func(domain.InboundMessage)) {
	m.handler = handler
}

func (m *mockChannel) bodiesTo(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.To == to {
			out = append(out, s.Body)
		}
	}
	return out
}

func (m *mockChannel) all() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, s := range m.sent {
		b.WriteString(s.Body)
		b.WriteString("\n")
	}
	return b.String()
}

type recordingSink struct {
	mu   sync.Mutex
	recs []domain.CompletionRecord
}

func (s *recordingSink) OnComplete(_ context.Context, rec domain.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) Find(code string) (*domain.CompletionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recs {
		if s.recs[i].TicketCode == code {
			r := s.recs[i]
			return &r, true, nil
		}
	}
	return nil, false, nil
}

type failingStore struct {
	store.Store
	panicOnGet bool
}

func (f *failingStore) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	if f.panicOnGet {
		panic("store exploded")
	}
	return f.Store.Get(ctx, id)
}

func (f *failingStore) Put(ctx context.Context, sess *domain.Session) error {
	_ = f.Store.Put(ctx, sess)
	return &domain.StorePersistError{SessionID: sess.ID, Err: errors.New("disk full")}
}

type fixture struct {
	ch     *mockChannel
	store  store.Store
	sink   *recordingSink
	hooks  *hooks.Manager
	router *Router
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	log := testLogger()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(log)
	reg.Register(ch)

	f := &fixture{ch: ch, store: store.NewMemoryStore(), sink: &recordingSink{}, hooks: hooks.NewManager(log)}
	d := Deps{
		Channels: reg,
		Store:    f.store,
		Machine: dialogue.New(dialogue.Config{Locale: "pt"},
			dialogue.WithClock(func() time.Time { return time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC) })),
		Registry: registry.None{},
		Tickets:  f.sink,
		Sink:     f.sink,
		Hooks:    f.hooks,
		Idle:     idle.Config{Short: time.Hour, Long: time.Hour, ShortAfter: 2},
	}
	if mutate != nil {
		mutate(&d)
	}
	f.store = d.Store
	f.router = NewRouter(d, log)
	t.Cleanup(f.router.Stop)
	return f
}

func dm(from, body string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "m-" + body,
		ChannelID: "irc",
		From:      from,
		ChatID:    from,
		ChatType:  domain.ChatTypeDM,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (f *fixture) say(from string, bodies ...string) {
	for _, b := range bodies {
		f.router.HandleInbound(context.Background(), dm(from, b))
	}
	f.router.Gate().Wait()
}

func TestRouter_FullIntake(t *testing.T) {
	f := newFixture(t, nil)

	f.say("alice", "1")
	assert.Contains(t, f.ch.all(), "Boa tarde! Sou a IADP")

	f.say("alice", "Alice Silva", "012345", "3", "Tudo ótimo", "1", "5")

	require.Len(t, f.sink.recs, 1)
	rec := f.sink.recs[0]
	assert.Equal(t, "irc:alice", rec.CorrespondentID)
	assert.Equal(t, "Alice Silva", rec.Name)
	assert.Equal(t, 5, *rec.Rating)
	assert.Equal(t, domain.StatusCompleted, rec.Status)

	sess, ok, err := f.store.Get(context.Background(), "irc:alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StateInitial, sess.State)
	assert.Contains(t, f.ch.all(), rec.TicketCode)

	// the ticket can be looked up afterwards
	f.say("alice", "2", strings.ToLower(rec.TicketCode))
	assert.Contains(t, f.ch.all(), "Protocolo "+rec.TicketCode+": Concluído")
}

func TestRouter_RepliesGoToSender(t *testing.T) {
	f := newFixture(t, nil)
	f.say("bob", "oi")
	assert.NotEmpty(t, f.ch.bodiesTo("bob"))
	assert.Empty(t, f.ch.bodiesTo("alice"))
}

func TestRouter_PerCorrespondentIsolation(t *testing.T) {
	f := newFixture(t, nil)

	f.router.HandleInbound(context.Background(), dm("alice", "1"))
	f.router.HandleInbound(context.Background(), dm("bob", "2"))
	f.router.HandleInbound(context.Background(), dm("alice", "Alice"))
	f.router.Gate().Wait()

	a, _, _ := f.store.Get(context.Background(), "irc:alice")
	b, _, _ := f.store.Get(context.Background(), "irc:bob")
	assert.Equal(t, domain.StateRegistrationIDCollection, a.State)
	assert.Equal(t, "Alice", a.Fields.Name)
	assert.Equal(t, domain.StateProtocolStatusLookup, b.State)
	assert.Empty(t, b.Fields.Name)
}

func TestRouter_OrderingUnderBurst(t *testing.T) {
	f := newFixture(t, nil)

	// If messages were processed out of order "Alice" would not be the name.
	for _, body := range []string{"1", "Alice", "012345", "2", "4"} {
		f.router.HandleInbound(context.Background(), dm("alice", body))
	}
	f.router.Gate().Wait()

	sess, _, _ := f.store.Get(context.Background(), "irc:alice")
	assert.Equal(t, domain.StateDetailCollection, sess.State)
	assert.Equal(t, "Alice", sess.Fields.Name)
	assert.Equal(t, "Benefícios - Férias", sess.Fields.SelectedOption)
}

func TestRouter_GroupMessagesIgnored(t *testing.T) {
	f := newFixture(t, nil)
	msg := dm("carol", "1")
	msg.ChatType = domain.ChatTypeGroup
	msg.ChatID = "#geral"

	f.router.HandleInbound(context.Background(), msg)
	f.router.Gate().Wait()

	assert.Empty(t, f.ch.all())
	_, ok, _ := f.store.Get(context.Background(), "irc:carol")
	assert.False(t, ok, "group messages never create sessions")
}

func TestRouter_GroupNotice(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.GroupNotice = true })
	msg := dm("carol", "1")
	msg.ChatType = domain.ChatTypeGroup
	msg.ChatID = "#geral"

	f.router.HandleInbound(context.Background(), msg)
	f.router.Gate().Wait()

	got := f.ch.bodiesTo("#geral")
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Não posso responder em grupos")
}

func TestRouter_SendRetriesOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.ch.failures.Store(1)

	f.say("dave", "oi")
	assert.Len(t, f.ch.bodiesTo("dave"), 1, "first failure is retried")
}

func TestRouter_SendGivesUpAfterRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.ch.failures.Store(2)

	err := f.router.SendTo(context.Background(), "irc", "dave", "hello")
	var sendErr *domain.TransportSendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, 2, sendErr.Attempts)
	assert.Empty(t, f.ch.bodiesTo("dave"))
}

func TestRouter_SendTo_UnknownChannel(t *testing.T) {
	f := newFixture(t, nil)
	err := f.router.SendTo(context.Background(), "nonexistent", "#test", "hello")
	assert.Error(t, err)
}

func TestRouter_PersistFailureStillReplies(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Store = &failingStore{Store: d.Store} })
	f.say("erin", "1")

	assert.NotEmpty(t, f.ch.bodiesTo("erin"))
	sess, ok, _ := f.store.Get(context.Background(), "irc:erin")
	require.True(t, ok)
	assert.Equal(t, domain.StateNameCollection, sess.State)
}

func TestRouter_PanicAnsweredWithApology(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Store = &failingStore{Store: d.Store, panicOnGet: true} })
	f.say("frank", "oi")

	got := f.ch.bodiesTo("frank")
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Ocorreu um erro")
}

func TestRouter_HooksFire(t *testing.T) {
	f := newFixture(t, nil)

	var starts atomic.Int32
	handoff := make(chan hooks.HandoffRequested, 1)
	f.hooks.On(hooks.EventSessionStart, "t", func(context.Context, hooks.Event) error {
		starts.Add(1)
		return nil
	})
	f.hooks.On(hooks.EventHandoff, "t", hooks.Handle(func(_ context.Context, ev hooks.HandoffRequested) error {
		handoff <- ev
		return nil
	}))

	f.say("gina", "4", "sim")
	assert.Equal(t, int32(1), starts.Load())

	select {
	case ev := <-handoff:
		assert.Equal(t, "irc:gina", ev.Session)
		assert.Equal(t, domain.StateInitial, ev.ResumeState)
	case <-time.After(time.Second):
		t.Fatal("handoff hook not emitted")
	}
}

func TestRouter_IdleNudge(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Idle = idle.Config{Short: 10 * time.Millisecond, Long: 30 * time.Millisecond, ShortAfter: 2}
	})

	f.say("hank", "oi")
	before := len(f.ch.bodiesTo("hank"))

	require.Eventually(t, func() bool {
		return len(f.ch.bodiesTo("hank")) == before+1
	}, time.Second, 5*time.Millisecond)
	got := f.ch.bodiesTo("hank")
	assert.Contains(t, got[len(got)-1], "Estou aqui se precisar")

	time.Sleep(80 * time.Millisecond)
	assert.Len(t, f.ch.bodiesTo("hank"), before+1, "nudge is not re-armed")
	assert.False(t, f.router.Timers().Pending("irc:hank"))
}

func TestRouter_ActivityDisarmsNudge(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Idle = idle.Config{Short: 40 * time.Millisecond, Long: 40 * time.Millisecond, ShortAfter: 2}
	})

	for i := 0; i < 5; i++ {
		f.say("ivy", fmt.Sprintf("msg %d", i))
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotContains(t, f.ch.all(), "Estou aqui se precisar")
	assert.True(t, f.router.Timers().Pending("irc:ivy"))
}

func TestRouter_StopIgnoresLateTimerAndMessages(t *testing.T) {
	f := newFixture(t, nil)
	f.say("kim", "oi")
	sent := len(f.ch.bodiesTo("kim"))

	f.router.Stop()
	// a timer that fired just before Stop still delivers its callback
	f.router.onIdle("irc:kim", 1)
	f.router.HandleInbound(context.Background(), dm("kim", "1"))
	f.router.Gate().Wait()

	assert.Len(t, f.ch.bodiesTo("kim"), sent)
	assert.Empty(t, f.router.Gate().Active())
}

func TestRouter_Wire(t *testing.T) {
	f := newFixture(t, nil)
	f.router.Wire(context.Background())
	require.NotNil(t, f.ch.handler)

	f.ch.handler(dm("jack", "oi"))
	f.router.Gate().Wait()
	assert.NotEmpty(t, f.ch.bodiesTo("jack"))
}

func TestSessionID(t *testing.T) {
	msg := dm("alice", "x")
	msg.ChatID = "#anything"
	assert.Equal(t, "irc:alice", SessionID(msg))

	key, ok := ParseSessionID("webchat:abc:def")
	require.True(t, ok)
	assert.Equal(t, "webchat", key.ChannelID)
	assert.Equal(t, "abc:def", key.Address)

	_, ok = ParseSessionID("nocolon")
	assert.False(t, ok)
}
