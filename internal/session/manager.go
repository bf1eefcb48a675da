// ABOUTME: Tracks open sessions, handles registration, and exposes snapshots for
// ABOUTME: the health and admin surfaces.

package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// ErrAlreadyRegistered indicates a session with the same ID is already open.
var ErrAlreadyRegistered = errors.New("session already registered")

// Manager coordinates all open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewManager creates an empty session manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds an open session.
func (m *Manager) Register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return ErrAlreadyRegistered
	}

	m.sessions[s.ID] = s
	m.logger.Info("=== SESSION OPENED ===",
		"session_id", s.ID,
		"identity", s.Identity,
		"trust", s.Trust,
		"auth_method", s.AuthMethod,
		"quantum_sig", s.QuantumSig,
		"total_sessions", len(m.sessions),
	)
	return nil
}

// Unregister removes a session. Safe to call for unknown IDs.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.sessions[id]; exists {
		s.MarkClosed()
		delete(m.sessions, id)
		m.logger.Info("=== SESSION CLOSED ===",
			"session_id", id,
			"identity", s.Identity,
			"total_sessions", len(m.sessions),
		)
	}
}

// Get retrieves an open session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Info is the public view of one open session.
type Info struct {
	ID          string      `json:"id"`
	Identity    string      `json:"identity"`
	Trust       trust.Level `json:"trust"`
	AuthMethod  string      `json:"auth_method"`
	QuantumSig  bool        `json:"quantum_sig"`
	ConnectedAt time.Time   `json:"connected_at"`
	LastActive  time.Time   `json:"last_active"`
}

// Snapshot returns the current open sessions for the admin surface.
func (m *Manager) Snapshot() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{
			ID:          s.ID,
			Identity:    s.Identity,
			Trust:       s.Trust,
			AuthMethod:  s.AuthMethod,
			QuantumSig:  s.QuantumSig,
			ConnectedAt: s.ConnectedAt,
			LastActive:  s.LastActive(),
		})
	}
	return out
}
