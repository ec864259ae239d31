// Package store persists dialogue sessions keyed by correspondent id.
package store

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// Store is the durable key→Session map the router owns under the gate.
// Get returns a copy; callers hand it back through Put.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, bool, error)
	Put(ctx context.Context, sess *domain.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Session, error)
}

// New opens the backend selected by cfg.Store.
func New(cfg config.SessionConfig, log *logging.Logger) (Store, io.Closer, error) {
	switch cfg.Store {
	case "", "file":
		fs, err := OpenFile(cfg.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return fs, io.NopCloser(nil), nil
	case "sqlite":
		db, err := Open(cfg.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteStore(db), db, nil
	case "memory":
		return NewMemoryStore(), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// sanitize resets a session whose stored state is not a known one.
// The language survives so the correspondent keeps their locale.
func sanitize(sess *domain.Session, log *logging.Logger) {
	if sess.State.Valid() {
		return
	}
	log.Warn().Str("session", sess.ID).Str("state", string(sess.State)).Msg("unknown stored state, resetting session")
	sess.State = domain.StateInitial
	sess.Fields = domain.Fields{Language: sess.Fields.Language}
}

func sortSessions(out []domain.Session) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
}
