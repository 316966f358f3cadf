// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/spiderexpress-dev/spiderexpress/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

func init() {
	store.RegisterBackend("sqlite", func(locator string) (store.Store, error) {
		return New(locator)
	})
}

const (
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond
)

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	layers map[string]store.LayerSchema
}

// New opens (or creates) a SQLite database at path and initialises the
// seeds, app_state, and strategy_state tables. An empty path opens an
// in-memory database.
func New(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening spider db: %w", err)
	}

	// The engine writes through a single writer; one connection also keeps
	// an in-memory database alive for the process lifetime.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging spider db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating spider db: %w", err)
	}

	return &Store{db: db, layers: make(map[string]store.LayerSchema)}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS seeds (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	layer      TEXT NOT NULL,
	node_id    TEXT NOT NULL,
	iteration  INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	claim_id   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	visited_at TEXT,
	UNIQUE (layer, node_id)
);

CREATE INDEX IF NOT EXISTS idx_seeds_frontier ON seeds(layer, status, id);
CREATE INDEX IF NOT EXISTS idx_seeds_claim    ON seeds(claim_id);

CREATE TABLE IF NOT EXISTS app_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	iteration     INTEGER NOT NULL,
	max_iteration INTEGER NOT NULL,
	phase         TEXT NOT NULL DEFAULT 'idle',
	last_updated  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_state (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	layer    TEXT NOT NULL,
	strategy TEXT NOT NULL,
	data     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_strategy_state ON strategy_state(layer, strategy);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// ---------- transactions ----------

type txKey struct{}

// queryer abstracts *sql.DB and *sql.Tx so operations join an open
// transaction transparently.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx runs fn inside a transaction. A nested call detects the open
// transaction on the context and shares it; only the outermost scope
// commits.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) q(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// ---------- retry ----------

// exec retries transient SQLite failures (busy, locked) with bounded
// exponential backoff. Constraint violations surface as store.ErrConflict.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error

	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		res, err = s.q(ctx).ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !transient(err) {
			break
		}
		jitter := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}

	if constraint(err) {
		return nil, fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	return nil, fmt.Errorf("%w: %w", store.ErrDatabase, err)
}

func transient(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
}

func constraint(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrConstraint
}

// ---------- time helpers ----------

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a timestamp stored by this package.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ---------- identifiers ----------

// identRe restricts layer and column names before they are interpolated
// into DDL and queries.
var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validIdent(name string) bool {
	return identRe.MatchString(name)
}
