// Package plugin hosts optional components that react to service hooks,
// such as report delivery.
package plugin

import (
	"context"

	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/logging"
)

// Plugin is an optional component with an explicit lifecycle. Init
// subscribes to hooks and acquires resources; Close releases them.
type Plugin interface {
	ID() string
	Name() string
	Init(ctx context.Context, api API) error
	Close() error
}

// API is what a plugin receives at Init. Log is already scoped to the
// plugin's id.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}
