// Package idle manages per-session inactivity timers.
package idle

import (
	"sync"
	"time"

	"github.com/soyeahso/attendant/internal/logging"
)

// FireFunc is called when a timer expires. The generation identifies the
// arm call that scheduled it; callers confirm it with Current before acting.
type FireFunc func(id string, gen uint64)

// Config sets the nudge delays.
type Config struct {
	Short      time.Duration // used once the session has ShortAfter invalid answers
	Long       time.Duration
	ShortAfter int
}

// Manager keeps at most one pending single-shot timer per session.
type Manager struct {
	cfg    Config
	onFire FireFunc
	log    *logging.Logger

	mu      sync.Mutex
	timers  map[string]*entry
	nextGen uint64
	stopped bool
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// NewManager creates a timer manager. onFire runs on the timer goroutine and
// must not block; the router hands it to the concurrency gate.
func NewManager(cfg Config, onFire FireFunc, log *logging.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		onFire: onFire,
		log:    log.Sub("idle"),
		timers: make(map[string]*entry),
	}
}

// Delay returns the timeout used for a session with the given number of
// invalid answers.
func (m *Manager) Delay(invalidCount int) time.Duration {
	if invalidCount >= m.cfg.ShortAfter {
		return m.cfg.Short
	}
	return m.cfg.Long
}

// Arm schedules a nudge for id, replacing any pending timer.
func (m *Manager) Arm(id string, invalidCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	if e, ok := m.timers[id]; ok {
		e.timer.Stop()
	}

	m.nextGen++
	gen := m.nextGen
	d := m.Delay(invalidCount)
	m.timers[id] = &entry{
		gen:   gen,
		timer: time.AfterFunc(d, func() { m.onFire(id, gen) }),
	}
	m.log.Debug().Str("session", id).Dur("after", d).Uint64("gen", gen).Msg("idle timer armed")
}

// Disarm cancels the pending timer for id. Safe to call with nothing pending.
func (m *Manager) Disarm(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.timers[id]; ok {
		e.timer.Stop()
		delete(m.timers, id)
	}
}

// Current reports whether gen is still the live timer for id. A timer that
// already fired but was disarmed or re-armed before its callback ran is stale.
func (m *Manager) Current(id string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[id]
	return ok && e.gen == gen
}

// Consume marks the timer for id as spent if gen is current.
func (m *Manager) Consume(id string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[id]
	if !ok || e.gen != gen {
		return false
	}
	delete(m.timers, id)
	return true
}

// Pending reports whether id has an armed timer.
func (m *Manager) Pending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[id]
	return ok
}

// Count returns the number of armed timers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Stop cancels every timer; later Arm calls are ignored.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.timers {
		e.timer.Stop()
		delete(m.timers, id)
	}
	m.stopped = true
}
