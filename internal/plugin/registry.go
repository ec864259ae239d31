package plugin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/logging"
)

type entry struct {
	p       Plugin
	started bool
}

// Registry starts plugins in the order they were registered and stops them
// in reverse.
type Registry struct {
	hooks *hooks.Manager
	log   *logging.Logger

	mu      sync.Mutex
	entries []*entry
}

func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{hooks: hm, log: log.Sub("plugins")}
}

func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.ContainsFunc(r.entries, func(e *entry) bool { return e.p.ID() == p.ID() }) {
		return fmt.Errorf("plugin %q is already registered", p.ID())
	}
	r.entries = append(r.entries, &entry{p: p})
	r.log.Debug().Str("id", p.ID()).Str("name", p.Name()).Msg("plugin registered")
	return nil
}

// InitAll starts every plugin not yet started. On the first failure the
// plugins started so far are closed and the error is returned.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.Lock()
	var pending []*entry
	for _, e := range r.entries {
		if !e.started {
			pending = append(pending, e)
		}
	}
	r.mu.Unlock()

	for _, e := range pending {
		id := e.p.ID()
		if err := e.p.Init(ctx, API{Hooks: r.hooks, Log: r.log.Sub(id)}); err != nil {
			r.CloseAll()
			return fmt.Errorf("plugin %s: init: %w", id, err)
		}
		r.mu.Lock()
		e.started = true
		r.mu.Unlock()
		r.log.Info().Str("id", id).Str("name", e.p.Name()).Msg("plugin started")
	}
	return nil
}

// CloseAll stops started plugins, newest first. Close errors are logged.
// The registry lock is not held while a plugin closes.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var running []*entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.started {
			e.started = false
			running = append(running, e)
		}
	}
	r.mu.Unlock()

	for _, e := range running {
		if err := e.p.Close(); err != nil {
			r.log.Error().Err(err).Str("id", e.p.ID()).Msg("plugin close failed")
			continue
		}
		r.log.Debug().Str("id", e.p.ID()).Msg("plugin stopped")
	}
}

// List returns plugin ids in registration order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.p.ID()
	}
	return ids
}

// Started returns the ids of running plugins in registration order.
func (r *Registry) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, e := range r.entries {
		if e.started {
			ids = append(ids, e.p.ID())
		}
	}
	return ids
}
