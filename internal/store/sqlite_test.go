// ABOUTME: Tests for the SQLite store: audit append and filtered listing,
// ABOUTME: announcement and dispatch rows, limit normalization.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mesh/conclave-gateway/internal/audit"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func emitAt(t *testing.T, s *SQLiteStore, kind, identity, capName string, ts time.Time) *audit.Record {
	t.Helper()
	r := audit.NewRecord(kind, identity, trust.Basic, capName)
	r.Timestamp = ts
	require.NoError(t, s.Emit(context.Background(), r))
	return r
}

func TestSQLiteStore_EmitFillsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &audit.Record{Kind: audit.KindInvocation, Identity: "did:mesh:alice", Trust: trust.Basic, Capability: "mesh/echo"}
	require.NoError(t, s.Emit(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Timestamp.IsZero())

	records, err := s.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, r.ID, records[0].ID)
}

func TestSQLiteStore_AuditDetailRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := audit.NewRecord(audit.KindSignatureFailure, "did:mesh:alice", trust.Verified, "mesh/echo")
	r.Detail = map[string]any{"error": "tag mismatch"}
	require.NoError(t, s.Emit(ctx, r))

	records, err := s.ListAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tag mismatch", records[0].Detail["error"])
	assert.Equal(t, trust.Verified, records[0].Trust)
}

func TestSQLiteStore_ListAuditNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	old := emitAt(t, s, audit.KindInvocation, "did:mesh:alice", "mesh/echo", base)
	newer := emitAt(t, s, audit.KindInvocation, "did:mesh:alice", "mesh/echo", base.Add(time.Hour))

	records, err := s.ListAudit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, old.ID, records[1].ID)
}

func TestSQLiteStore_ListAuditFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	emitAt(t, s, audit.KindInvocation, "did:mesh:alice", "mesh/echo", base)
	emitAt(t, s, audit.KindInvocation, "did:mesh:bob", "mesh/broadcast", base.Add(time.Hour))
	emitAt(t, s, audit.KindSignatureFailure, "did:mesh:alice", "mesh/echo", base.Add(2*time.Hour))

	alice := "did:mesh:alice"
	records, err := s.ListAudit(ctx, AuditFilter{Identity: &alice})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	cap := "mesh/broadcast"
	records, err = s.ListAudit(ctx, AuditFilter{Capability: &cap})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "did:mesh:bob", records[0].Identity)

	kind := audit.KindSignatureFailure
	records, err = s.ListAudit(ctx, AuditFilter{Kind: &kind})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	since := base.Add(30 * time.Minute)
	until := base.Add(90 * time.Minute)
	records, err = s.ListAudit(ctx, AuditFilter{Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mesh/broadcast", records[0].Capability)

	records, err = s.ListAudit(ctx, AuditFilter{Identity: &alice, Kind: &kind})
	require.NoError(t, err)
	assert.Len(t, records, 1, "filters combine conjunctively")
}

func TestSQLiteStore_ListAuditEmpty(t *testing.T) {
	s := newTestStore(t)
	records, err := s.ListAudit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSQLiteStore_ListAuditLimit(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		emitAt(t, s, audit.KindInvocation, "did:mesh:alice", "mesh/echo", base.Add(time.Duration(i)*time.Minute))
	}

	records, err := s.ListAudit(context.Background(), AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNormalizeAuditLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-5))
	assert.Equal(t, 1, normalizeAuditLimit(1))
	assert.Equal(t, 1000, normalizeAuditLimit(1000))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
}

func TestSQLiteStore_Announcements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Announcement{
		Identity: "did:mesh:alice",
		Channel:  "ops",
		Message:  "deploy starting",
		Priority: "high",
		TTL:      5 * time.Minute,
	}
	require.NoError(t, s.SaveAnnouncement(ctx, a))
	assert.NotEmpty(t, a.ID)

	require.NoError(t, s.SaveAnnouncement(ctx, &Announcement{
		Identity: "did:mesh:bob",
		Channel:  "random",
		Message:  "lunch",
		Priority: "low",
	}))

	got, err := s.ListAnnouncements(ctx, "ops", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, "deploy starting", got[0].Message)
	assert.Equal(t, 5*time.Minute, got[0].TTL)
}

func TestSQLiteStore_Dispatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &Dispatch{
		Identity: "did:mesh:alice",
		Target:   "did:mesh:worker-1",
		Payload:  `{"task":"reindex"}`,
		Mode:     "acknowledged",
	}
	require.NoError(t, s.SaveDispatch(ctx, d))
	assert.NotEmpty(t, d.ID)

	got, err := s.ListDispatches(ctx, "did:mesh:worker-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, d.ID, got[0].ID)
	assert.Equal(t, "acknowledged", got[0].Mode)

	none, err := s.ListDispatches(ctx, "did:mesh:worker-2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_Ping(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
