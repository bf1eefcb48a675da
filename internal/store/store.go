// ABOUTME: Store interface over the persistence the gateway needs: the audit sink
// ABOUTME: plus the rows the builtin capability pack writes.

package store

import (
	"context"
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/audit"
)

// Store is what the gateway needs from persistence. The audit side satisfies
// audit.Sink; the announcement and dispatch rows back the builtin pack.
type Store interface {
	// Emit appends an audit record (audit.Sink).
	Emit(ctx context.Context, r *audit.Record) error

	// ListAudit returns records matching the filter, newest first.
	ListAudit(ctx context.Context, f AuditFilter) ([]audit.Record, error)

	// SaveAnnouncement persists one broadcast announcement row.
	SaveAnnouncement(ctx context.Context, a *Announcement) error

	// SaveDispatch persists one dispatch row.
	SaveDispatch(ctx context.Context, d *Dispatch) error

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database.
	Close() error
}

// AuditFilter narrows ListAudit results. Zero values mean "no constraint".
type AuditFilter struct {
	Since      *time.Time // records at or after this time
	Until      *time.Time // records at or before this time
	Identity   *string    // filter by identity claim
	Capability *string    // filter by capability name
	Kind       *string    // filter by record kind
	Limit      int        // max results (default 100, max 1000)
}

// Announcement is one mesh/broadcast invocation's persisted output.
type Announcement struct {
	ID        string
	Identity  string
	Channel   string
	Message   string
	Priority  string
	TTL       time.Duration
	CreatedAt time.Time
}

// Dispatch is one mesh/dispatch invocation's persisted output.
type Dispatch struct {
	ID        string
	Identity  string
	Target    string
	Payload   string
	Mode      string
	CreatedAt time.Time
}
