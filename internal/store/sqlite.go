// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: with automatic schema creation and WAL mode.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Parent directories
// are created if needed; the schema is applied idempotently.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers unblocked while the audit sink writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			identity TEXT NOT NULL,
			trust_level TEXT NOT NULL,
			capability TEXT NOT NULL,
			ts TEXT NOT NULL,
			detail_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_log_ts
			ON audit_log(ts);

		CREATE INDEX IF NOT EXISTS idx_audit_log_identity
			ON audit_log(identity, ts);

		CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			channel TEXT NOT NULL,
			message TEXT NOT NULL,
			priority TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_announcements_channel
			ON announcements(channel, created_at);

		CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			target TEXT NOT NULL,
			payload TEXT NOT NULL,
			mode TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_dispatches_target
			ON dispatches(target, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Ping reports database reachability for the readiness endpoint.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
