// ABOUTME: Audit record shape and sink interface. The core defines the record, not
// ABOUTME: its storage; sinks forward to sqlite, postgres, or the structured log.

package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Kinds distinguish why a record was emitted. Successful invocations always
// produce one; signature failures do too, since they may indicate tampering.
// Plain authorization failures are never recorded.
const (
	KindInvocation       = "invocation"
	KindSignatureFailure = "signature_failure"
)

// Record is one audit entry, correlated with the invocation response through
// its ID.
type Record struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Identity   string         `json:"identity"`
	Trust      trust.Level    `json:"trust"`
	Capability string         `json:"capability"`
	Timestamp  time.Time      `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// NewRecord builds a record with a fresh opaque ID and the current time.
func NewRecord(kind, identity string, level trust.Level, capabilityName string) *Record {
	return &Record{
		ID:         uuid.New().String(),
		Kind:       kind,
		Identity:   identity,
		Trust:      level,
		Capability: capabilityName,
		Timestamp:  time.Now().UTC(),
	}
}

// Sink receives audit records. Emit failures must never fail the invocation
// that produced the record; callers log and move on.
type Sink interface {
	Emit(ctx context.Context, r *Record) error
}

// LogSink writes records to the structured log. It is the fallback sink when
// no store is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink over the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Emit(_ context.Context, r *Record) error {
	s.logger.Info("audit",
		"audit_id", r.ID,
		"kind", r.Kind,
		"identity", r.Identity,
		"trust", r.Trust,
		"capability", r.Capability,
		"timestamp", r.Timestamp.Format(time.RFC3339),
	)
	return nil
}
