// ABOUTME: Postgres audit sink behind a narrow DB interface so tests can substitute
// ABOUTME: a fake without a running server.

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// auditDB is the subset of pgxpool.Pool the sink needs.
type auditDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSink appends records to an audit_log table in Postgres. Used by
// deployments that already ship their compliance data there.
type PostgresSink struct {
	db auditDB
}

// NewPostgresSink connects a pool and ensures the table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s := &PostgresSink{db: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// newPostgresSinkWithDB is the test seam.
func newPostgresSinkWithDB(db auditDB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			identity TEXT NOT NULL,
			trust_level TEXT NOT NULL,
			capability TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			detail_json JSONB
		)
	`)
	if err != nil {
		return fmt.Errorf("creating audit_log table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Emit(ctx context.Context, r *Record) error {
	var detail []byte
	if r.Detail != nil {
		var err error
		detail, err = json.Marshal(r.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (audit_id, kind, identity, trust_level, capability, ts, detail_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.Kind, r.Identity, string(r.Trust), r.Capability, r.Timestamp, detail)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

// Get reads one record back by audit id.
func (s *PostgresSink) Get(ctx context.Context, auditID string) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT audit_id, kind, identity, trust_level, capability, ts, detail_json
		FROM audit_log WHERE audit_id = $1
	`, auditID)

	var r Record
	var level string
	var detail []byte
	if err := row.Scan(&r.ID, &r.Kind, &r.Identity, &level, &r.Capability, &r.Timestamp, &detail); err != nil {
		return nil, fmt.Errorf("scanning audit record: %w", err)
	}
	r.Trust = trust.Level(level)
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &r.Detail); err != nil {
			return nil, fmt.Errorf("unmarshaling audit detail: %w", err)
		}
	}
	return &r, nil
}
