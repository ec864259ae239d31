package idle

import (
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/attendant/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu    sync.Mutex
	fires []uint64
	ch    chan struct{}
}

func newRecorder() *fireRecorder {
	return &fireRecorder{ch: make(chan struct{}, 16)}
}

func (r *fireRecorder) fire(_ string, gen uint64) {
	r.mu.Lock()
	r.fires = append(r.fires, gen)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *fireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires)
}

func testManager(cfg Config, fn FireFunc) *Manager {
	return NewManager(cfg, fn, logging.New(nil, "silent"))
}

func TestDelay_EscalatesAfterInvalidAnswers(t *testing.T) {
	m := testManager(Config{Short: 5 * time.Minute, Long: 10 * time.Minute, ShortAfter: 2}, nil)
	assert.Equal(t, 10*time.Minute, m.Delay(0))
	assert.Equal(t, 10*time.Minute, m.Delay(1))
	assert.Equal(t, 5*time.Minute, m.Delay(2))
	assert.Equal(t, 5*time.Minute, m.Delay(7))
}

func TestArm_Fires(t *testing.T) {
	rec := newRecorder()
	m := testManager(Config{Short: 5 * time.Millisecond, Long: 10 * time.Millisecond, ShortAfter: 2}, rec.fire)

	m.Arm("irc:alice", 0)
	assert.True(t, m.Pending("irc:alice"))

	select {
	case <-rec.ch:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, 1, rec.count())
	assert.True(t, m.Current("irc:alice", rec.fires[0]))
	assert.True(t, m.Consume("irc:alice", rec.fires[0]))
	assert.False(t, m.Pending("irc:alice"))
}

func TestDisarm_Idempotent(t *testing.T) {
	rec := newRecorder()
	m := testManager(Config{Short: 10 * time.Millisecond, Long: 10 * time.Millisecond}, rec.fire)

	m.Disarm("nobody")
	m.Arm("irc:bob", 0)
	m.Disarm("irc:bob")
	m.Disarm("irc:bob")

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 0, m.Count())
}

func TestArm_ReplacesPriorTimer(t *testing.T) {
	rec := newRecorder()
	m := testManager(Config{Short: 20 * time.Millisecond, Long: 20 * time.Millisecond}, rec.fire)

	for i := 0; i < 5; i++ {
		m.Arm("irc:carol", 0)
	}
	assert.Equal(t, 1, m.Count())

	select {
	case <-rec.ch:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "re-arming must never leave two timers for one session")
}

func TestCurrent_StaleGenerationAfterDisarm(t *testing.T) {
	var (
		mu  sync.Mutex
		got []uint64
	)
	fired := make(chan struct{}, 1)
	m := testManager(Config{Short: time.Millisecond, Long: time.Millisecond}, func(_ string, gen uint64) {
		mu.Lock()
		got = append(got, gen)
		mu.Unlock()
		fired <- struct{}{}
	})

	m.Arm("irc:dave", 0)
	<-fired

	// The callback has run but the gated handler has not yet; a disarm in
	// between must make the fire stale.
	m.Disarm("irc:dave")
	mu.Lock()
	gen := got[0]
	mu.Unlock()
	assert.False(t, m.Current("irc:dave", gen))
	assert.False(t, m.Consume("irc:dave", gen))

	m.Arm("irc:dave", 0)
	<-fired
	mu.Lock()
	newGen := got[1]
	mu.Unlock()
	require.NotEqual(t, gen, newGen)
	assert.False(t, m.Current("irc:dave", gen))
	assert.True(t, m.Current("irc:dave", newGen))
}

func TestStop(t *testing.T) {
	rec := newRecorder()
	m := testManager(Config{Short: 10 * time.Millisecond, Long: 10 * time.Millisecond}, rec.fire)

	m.Arm("a", 0)
	m.Arm("b", 0)
	m.Stop()
	m.Arm("c", 0)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 0, m.Count())
}
