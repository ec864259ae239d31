package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/soyeahso/attendant/internal/logging"
)

// Watcher calls onChange whenever the registry file is written or replaced.
// It watches the parent directory so editors that save via rename are seen.
type Watcher struct {
	path     string
	onChange func()
	fw       *fsnotify.Watcher
	log      *logging.Logger
}

// NewWatcher starts watching path. Call Run to dispatch events.
func NewWatcher(path string, onChange func(), log *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		fw:       fw,
		log:      log.Sub("registry"),
	}, nil
}

// Run dispatches events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.log.Debug().Str("op", ev.Op.String()).Msg("registry file changed")
				w.onChange()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("registry watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
