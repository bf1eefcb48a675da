// ABOUTME: Bearer-guarded admin queries: the filtered audit log and the snapshot
// ABOUTME: of open sessions.

package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/store"
)

// handleAuditList serves GET /v1/audit with optional query filters: since,
// until (RFC3339), identity, capability, kind, limit.
func (g *Gateway) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		http.Error(w, `{"error":"audit queries require the sqlite store"}`, http.StatusNotImplemented)
		return
	}

	f, errMsg := auditFilterFromQuery(r)
	if errMsg != "" {
		http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusBadRequest)
		return
	}

	records, err := g.store.ListAudit(r.Context(), f)
	if err != nil {
		g.logger.Error("audit query failed", "error", err)
		http.Error(w, `{"error":"audit query failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func auditFilterFromQuery(r *http.Request) (store.AuditFilter, string) {
	var f store.AuditFilter
	q := r.URL.Query()

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, "since must be RFC3339"
		}
		f.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, "until must be RFC3339"
		}
		f.Until = &t
	}
	if v := q.Get("identity"); v != "" {
		f.Identity = &v
	}
	if v := q.Get("capability"); v != "" {
		f.Capability = &v
	}
	if v := q.Get("kind"); v != "" {
		f.Kind = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, "limit must be an integer"
		}
		f.Limit = n
	}

	return f, ""
}

// handleSessions serves GET /v1/sessions: the open-session snapshot.
func (g *Gateway) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": g.sessions.Snapshot()})
}
