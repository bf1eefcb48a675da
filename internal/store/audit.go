// ABOUTME: Audit sink and filtered list query over the audit_log table.
// ABOUTME: Records are stored with RFC3339 timestamps and a JSON detail column.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-mesh/conclave-gateway/internal/audit"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Emit appends one audit record. A missing ID or timestamp is filled in so
// the store can be used as a bare sink.
func (s *SQLiteStore) Emit(ctx context.Context, r *audit.Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if r.Detail != nil {
		data, err := json.Marshal(r.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, kind, identity, trust_level, capability, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Kind,
		r.Identity,
		string(r.Trust),
		r.Capability,
		r.Timestamp.UTC().Format(time.RFC3339),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	s.logger.Debug("appended audit record",
		"audit_id", r.ID,
		"kind", r.Kind,
		"identity", r.Identity,
		"capability", r.Capability,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to the limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditListQuery = `
	SELECT audit_id, kind, identity, trust_level, capability, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR identity = ?)
	  AND (? IS NULL OR capability = ?)
	  AND (? IS NULL OR kind = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAudit returns records matching the filter, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, f AuditFilter) ([]audit.Record, error) {
	limit := normalizeAuditLimit(f.Limit)

	var sinceStr, untilStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &v
	}
	if f.Until != nil {
		v := f.Until.UTC().Format(time.RFC3339)
		untilStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditListQuery,
		sinceStr, sinceStr,
		untilStr, untilStr,
		f.Identity, f.Identity,
		f.Capability, f.Capability,
		f.Kind, f.Kind,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []audit.Record
	for rows.Next() {
		r, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}

	if records == nil {
		records = []audit.Record{}
	}
	return records, nil
}

func scanAuditRecord(scanner interface{ Scan(dest ...any) error }) (audit.Record, error) {
	var r audit.Record
	var level, tsStr string
	var detailJSON *string

	if err := scanner.Scan(
		&r.ID,
		&r.Kind,
		&r.Identity,
		&level,
		&r.Capability,
		&tsStr,
		&detailJSON,
	); err != nil {
		return r, fmt.Errorf("scanning audit record: %w", err)
	}

	r.Trust = trust.Level(level)
	var err error
	r.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return r, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &r.Detail); err != nil {
			return r, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return r, nil
}
