package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// FileStore keeps every session in one JSON document on disk. The in-memory
// map is authoritative; each Put rewrites the whole file atomically.
type FileStore struct {
	path string
	log  *logging.Logger

	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// OpenFile loads (or creates) the store at path.
func OpenFile(path string, log *logging.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	fs := &FileStore{
		path:     path,
		log:      log.Sub("store"),
		sessions: make(map[string]*domain.Session),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading session file: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &fs.sessions); err != nil {
			return nil, fmt.Errorf("parsing session file %s: %w", path, err)
		}
	}

	for id, s := range fs.sessions {
		if s == nil {
			delete(fs.sessions, id)
			continue
		}
		s.ID = id
		sanitize(s, fs.log)
	}

	fs.log.Info().Str("path", path).Int("sessions", len(fs.sessions)).Msg("session file opened")
	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(_ context.Context, id string) (*domain.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

// Put updates memory first and then flushes. A flush failure leaves memory
// updated and returns a StorePersistError; the next good flush catches up.
func (f *FileStore) Put(_ context.Context, sess *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sess.ID] = sess.Clone()
	if err := f.flush(); err != nil {
		return &domain.StorePersistError{SessionID: sess.ID, Err: err}
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return nil
	}
	delete(f.sessions, id)
	if err := f.flush(); err != nil {
		return &domain.StorePersistError{SessionID: id, Err: err}
	}
	return nil
}

func (f *FileStore) List(_ context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s.Clone())
	}
	f.mu.Unlock()
	sortSessions(out)
	return out, nil
}

// flush writes tmp, fsyncs, renames over the target and fsyncs the
// directory. Caller holds f.mu.
func (f *FileStore) flush() error {
	data, err := json.MarshalIndent(f.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}

	tmp := f.path + ".tmp"
	fh, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming session file: %w", err)
	}

	dir, err := os.Open(filepath.Dir(f.path))
	if err != nil {
		return fmt.Errorf("opening store directory: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("syncing store directory: %w", err)
	}
	return nil
}
