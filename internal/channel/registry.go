// Package channel manages the messaging transports correspondents reach the
// service through.
package channel

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// Registry manages a set of messaging channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	running  map[string]bool
	exitErrs map[string]string
	wg       sync.WaitGroup
	log      *logging.Logger
}

// NewRegistry creates a channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		running:  make(map[string]bool),
		exitErrs: make(map[string]string),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel to the registry, replacing one with the same ID.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get returns a channel by ID.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns all channel IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.channels))
}

// Status returns the status of all registered channels, sorted by ID.
// Channels that do not report their own status are described by whether
// their Start call is still running.
func (r *Registry) Status() []domain.ChannelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]domain.ChannelStatus, 0, len(r.channels))
	for id, ch := range r.channels {
		if sc, ok := ch.(interface{ Status() domain.ChannelStatus }); ok {
			statuses = append(statuses, sc.Status())
			continue
		}
		statuses = append(statuses, domain.ChannelStatus{
			ChannelID: id,
			Running:   r.running[id],
			Connected: r.running[id],
			LastError: r.exitErrs[id],
		})
	}
	slices.SortFunc(statuses, func(a, b domain.ChannelStatus) int { return strings.Compare(a.ChannelID, b.ChannelID) })
	return statuses
}

// StartAll starts all registered channels in background goroutines.
// Channel Start methods may block (e.g. IRC's Connect), so each is
// launched concurrently to avoid preventing subsequent initialization.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.channels {
		r.log.Info().Str("channel", id).Msg("starting channel")
		r.running[id] = true
		delete(r.exitErrs, id)
		r.wg.Add(1)
		go func(id string, ch domain.Channel) {
			defer r.wg.Done()
			err := ch.Start(ctx)
			r.mu.Lock()
			r.running[id] = false
			if err != nil && ctx.Err() == nil {
				r.exitErrs[id] = err.Error()
			}
			r.mu.Unlock()
			if err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Str("channel", id).Msg("channel exited with error")
			}
		}(id, ch)
	}
	return nil
}

// StopAll stops all registered channels.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range slices.Sorted(maps.Keys(r.channels)) {
		r.log.Info().Str("channel", id).Msg("stopping channel")
		if err := r.channels[id].Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("failed to stop channel")
		}
	}
}

// Wait blocks until every Start launched by StartAll has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
