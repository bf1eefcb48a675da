// ABOUTME: Health and readiness endpoints. Stateless, no handshake or auth, used
// ABOUTME: by load balancers and the admin CLI.

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/conclave-mesh/conclave-gateway/internal/protocol"
)

// healthResponse is the body of GET /health and /health/ready.
type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Connections int    `json:"connections"`
	QuantumSafe bool   `json:"quantum_safe"`
}

// handleHealth reports liveness and the open-connection count.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Service:     protocol.ServiceName,
		Version:     g.version,
		Connections: g.sessions.Count(),
		QuantumSafe: true,
	})
}

// handleReady additionally gates on store availability.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ready",
		Service:     protocol.ServiceName,
		Version:     g.version,
		Connections: g.sessions.Count(),
		QuantumSafe: true,
	}

	if g.store != nil {
		if err := g.store.Ping(r.Context()); err != nil {
			resp.Status = "store unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
