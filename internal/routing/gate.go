package routing

import (
	"runtime/debug"
	"sort"
	"sync"

	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/metrics"
)

// Gate serializes tasks per session id. Each id with pending work has one
// worker goroutine draining a FIFO queue; ids never block each other and an
// id with no work holds no resources.
type Gate struct {
	mu      sync.Mutex
	queues  map[string][]func()
	closed  bool
	wg      sync.WaitGroup
	metrics *metrics.Metrics
	log     *logging.Logger
}

// NewGate creates an empty gate.
func NewGate(m *metrics.Metrics, log *logging.Logger) *Gate {
	return &Gate{
		queues:  make(map[string][]func()),
		metrics: m,
		log:     log.Sub("routing"),
	}
}

// Submit queues task behind any in-flight work for id. It never blocks.
// After Close it drops the task and returns false.
func (g *Gate) Submit(id string, task func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.log.Debug().Str("session", id).Msg("gate closed, dropping task")
		return false
	}
	if q, busy := g.queues[id]; busy {
		g.queues[id] = append(q, task)
		g.mu.Unlock()
		return true
	}
	g.queues[id] = nil
	g.wg.Add(1)
	g.mu.Unlock()

	g.metrics.WorkerStarted()
	go g.drain(id, task)
	return true
}

func (g *Gate) drain(id string, task func()) {
	defer g.wg.Done()
	defer g.metrics.WorkerDone()
	for {
		g.run(id, task)

		g.mu.Lock()
		q := g.queues[id]
		if len(q) == 0 {
			delete(g.queues, id)
			g.mu.Unlock()
			return
		}
		task = q[0]
		q[0] = nil
		g.queues[id] = q[1:]
		g.mu.Unlock()
	}
}

func (g *Gate) run(id string, task func()) {
	defer func() {
		if p := recover(); p != nil {
			g.log.Error().
				Str("session", id).
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Msg("gated task panicked")
		}
	}()
	task()
}

// Close stops accepting tasks. Work already queued still drains, so Close
// followed by Wait is a clean shutdown.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Wait blocks until every worker has drained.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// Active returns the ids with an in-flight worker, sorted.
func (g *Gate) Active() []string {
	g.mu.Lock()
	ids := make([]string, 0, len(g.queues))
	for id := range g.queues {
		ids = append(ids, id)
	}
	g.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Queued returns the number of tasks waiting behind the running one for id.
func (g *Gate) Queued(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queues[id])
}
