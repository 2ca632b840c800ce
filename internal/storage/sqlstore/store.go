// Package sqlstore implements storage.Storage on database/sql.
//
// Two dialects are supported: an embedded SQLite file (ncruces/go-sqlite3,
// no cgo) for single-user installs, and the MySQL wire protocol
// (go-sql-driver/mysql) for a shared MySQL or dolt sql-server.
//
// Timestamps are stored as fixed-width UTC text (storage.FormatTime) so the
// (created_at, id) slice ordering is identical in both dialects. Feedback
// rows carry a version column; UpdateFeedback only writes when the version
// still matches, which turns a lost update into ErrConcurrentModification.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rulebook-dev/rulebook/internal/storage"
)

// Store is a database/sql backed storage.Storage.
type Store struct {
	*conn

	db      *sql.DB
	dialect *dialect
	path    string // SQLite file or MySQL address, for diagnostics

	mu     sync.RWMutex
	closed bool
}

var _ storage.Storage = (*Store)(nil)

func newStore(db *sql.DB, d *dialect, path string) *Store {
	return &Store{
		conn:    &conn{q: db, d: d},
		db:      db,
		dialect: d,
		path:    path,
	}
}

// RunInTransaction executes fn within a database transaction.
//
// SQLite transactions begin IMMEDIATE so concurrent writers queue on the
// database lock instead of failing at commit. MySQL transactions lock the
// feedback row on read (SELECT ... FOR UPDATE). Transient connection errors
// in MySQL mode retry the whole transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return s.withRetry(ctx, func() error { return s.runTx(ctx, fn) })
}

func (s *Store) runTx(ctx context.Context, fn func(tx storage.Transaction) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &conn{q: sqlTx, d: s.dialect, inTx: true}
	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced use.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the SQLite file path or MySQL address.
func (s *Store) Path() string {
	return s.path
}

// Dialect returns "sqlite" or "mysql".
func (s *Store) Dialect() string {
	return s.dialect.name
}

// Server mode retry configuration. The mysql driver has no built-in retry,
// so transient connection errors (stale pool connections, server restarts,
// deadlocks) are retried with exponential backoff.
const serverRetryMaxElapsed = 30 * time.Second

func newServerRetryBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return bo
}

// withRetry executes op with retry for transient errors. Only active for
// dialects that report retryable errors.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	if s.dialect.retryable == nil {
		return op()
	}
	return backoff.Retry(func() error {
		err := op()
		if err != nil && s.dialect.retryable(err) {
			return err // Retryable - backoff will retry
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newServerRetryBackoff(), ctx))
}

// initSchema creates all tables if they don't exist.
func initSchema(ctx context.Context, db *sql.DB, d *dialect) error {
	// Fast path: schema already at current version.
	var version int
	err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE name = 'schema_version'").Scan(&version)
	if err == nil && version >= currentSchemaVersion {
		return nil
	}

	// Split and execute each statement; the mysql driver rejects
	// multi-statement Exec by default.
	for _, stmt := range strings.Split(d.schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w\nSQL: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("%s INTO meta (name, value) VALUES ('schema_version', ?)", d.insertIgnore),
		fmt.Sprint(currentSchemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}
