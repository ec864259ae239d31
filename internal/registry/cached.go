package registry

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/soyeahso/attendant/internal/logging"
)

// Cached keeps the loaded table in memory until Invalidate is called.
// Concurrent loads collapse into one read of the file.
type Cached struct {
	loader Loader
	log    *logging.Logger
	group  singleflight.Group

	mu    sync.RWMutex
	table map[string]Record
	gen   uint64 // bumped by Invalidate
	loads int
}

// NewCached wraps a loader.
func NewCached(loader Loader, log *logging.Logger) *Cached {
	return &Cached{loader: loader, log: log.Sub("registry")}
}

func (c *Cached) Find(ctx context.Context, registrationID string) (Record, bool, error) {
	table, err := c.current(ctx)
	if err != nil {
		return nil, false, err
	}
	rec, ok := table[NormalizeID(registrationID)]
	if !ok {
		return nil, false, nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true, nil
}

// Invalidate drops the cached table; the next lookup reloads it. A load
// already in flight is not installed.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.table = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget("load")
	c.log.Info().Msg("registry invalidated")
}

// Loads reports how many times the underlying loader ran.
func (c *Cached) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}

// Size returns the number of records currently cached.
func (c *Cached) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table)
}

func (c *Cached) current(ctx context.Context) (map[string]Record, error) {
	c.mu.RLock()
	if c.table != nil {
		t := c.table
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do("load", func() (interface{}, error) {
		// Double-check after acquiring singleflight
		c.mu.RLock()
		if c.table != nil {
			t := c.table
			c.mu.RUnlock()
			return t, nil
		}
		gen := c.gen
		c.mu.RUnlock()

		table, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.loads++
		stale := c.gen != gen
		if !stale {
			c.table = table
		}
		c.mu.Unlock()
		if stale {
			c.log.Debug().Msg("registry changed during load, not caching")
			return table, nil
		}
		c.log.Info().Int("records", len(table)).Msg("registry loaded")
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]Record), nil
}
