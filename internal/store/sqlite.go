package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// DB wraps a SQLite database connection with migration support.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens (or creates) a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for tests).
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and the
	// router already serializes writers per session.
	sqlDB.SetMaxOpenConns(1)

	// WAL mode for better concurrent read performance
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Foreign keys on
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{sql: sqlDB, log: log.Sub("store")}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db.log.Info().Str("path", path).Msg("database opened")
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.log.Info().Msg("closing database")
	return db.sql.Close()
}

// SQL returns the underlying *sql.DB for direct queries.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// migrate runs all pending migrations.
func (db *DB) migrate() error {
	// Create migrations tracking table
	if _, err := db.sql.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := db.sql.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (db *DB) isMigrationApplied(version int) (bool, error) {
	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return count > 0, nil
}

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps sessions in the sessions table. A write-through cache
// serves sessions whose last write failed.
type SQLiteStore struct {
	db *DB

	mu    sync.Mutex
	cache map[string]*domain.Session
}

// NewSQLiteStore creates a session store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db, cache: make(map[string]*domain.Session)}
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	s.mu.Lock()
	if c, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return c.Clone(), true, nil
	}
	s.mu.Unlock()

	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, state, fields, created_at, updated_at FROM sessions WHERE id = ?`, id)
	sess, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading session %s: %w", id, err)
	}

	s.mu.Lock()
	s.cache[id] = sess.Clone()
	s.mu.Unlock()
	return sess, true, nil
}

// Put upserts the session in a transaction. The cache is updated first so
// a failed write still serves the latest state.
func (s *SQLiteStore) Put(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	s.cache[sess.ID] = sess.Clone()
	s.mu.Unlock()

	fields, err := json.Marshal(sess.Fields)
	if err != nil {
		return &domain.StorePersistError{SessionID: sess.ID, Err: err}
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorePersistError{SessionID: sess.ID, Err: err}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, state, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   fields = excluded.fields,
		   updated_at = excluded.updated_at`,
		sess.ID, string(sess.State), string(fields),
		sess.CreatedAt.Format(timeLayout), sess.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		tx.Rollback()
		s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to upsert session")
		return &domain.StorePersistError{SessionID: sess.ID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StorePersistError{SessionID: sess.ID, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return &domain.StorePersistError{SessionID: id, Err: err}
	}
	return nil
}

// List returns every stored session, overlaid with cached copies.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, state, fields, created_at, updated_at FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Session)
	for rows.Next() {
		sess, err := s.scan(rows)
		if err != nil {
			s.db.log.Warn().Err(err).Msg("skipping unreadable session row")
			continue
		}
		byID[sess.ID] = *sess
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for id, c := range s.cache {
		byID[id] = *c.Clone()
	}
	s.mu.Unlock()

	out := make([]domain.Session, 0, len(byID))
	for _, sess := range byID {
		out = append(out, sess)
	}
	sortSessions(out)
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scan(row scanner) (*domain.Session, error) {
	var (
		sess                 domain.Session
		state, fields        string
		createdAt, updatedAt string
	)
	if err := row.Scan(&sess.ID, &state, &fields, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sess.State = domain.State(state)
	if err := json.Unmarshal([]byte(fields), &sess.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of %s: %w", sess.ID, err)
	}
	sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	sess.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	sanitize(&sess, s.db.log)
	return &sess, nil
}
