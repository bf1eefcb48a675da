// ABOUTME: Per-connection session state: identity, trust, liveness, and the
// ABOUTME: rate-limit windows that live and die with the connection.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-mesh/conclave-gateway/internal/ratelimit"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Session holds one connection's state. Identity and trust are fixed at
// connection time; there is no in-band escalation path. The mutex covers
// only the liveness fields the heartbeat goroutine shares with the reader.
type Session struct {
	ID          string
	Identity    string
	Trust       trust.Level
	AuthMethod  string
	QuantumSig  bool
	ConnectedAt time.Time

	limiter ratelimit.Limiter

	mu         sync.Mutex
	lastActive time.Time
	inFlight   bool
	closed     bool
}

// New creates a session from extracted connection metadata. A nil limiter
// gets a fresh in-process one, scoping every window to this connection.
func New(meta Metadata, limiter ratelimit.Limiter) *Session {
	if limiter == nil {
		limiter = ratelimit.NewMemory()
	}
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.New().String(),
		Identity:    meta.Identity,
		Trust:       meta.Trust,
		AuthMethod:  meta.AuthMethod,
		QuantumSig:  meta.QuantumSig,
		ConnectedAt: now,
		limiter:     limiter,
		lastActive:  now,
	}
}

// Allow records an invocation attempt for the named capability against this
// session's windows.
func (s *Session) Allow(ctx context.Context, capName string, limit int, window time.Duration) ratelimit.Decision {
	return s.limiter.Allow(ctx, s.Identity+":"+capName, limit, window)
}

// BeginRequest marks the start of request handling. While a request is in
// flight the connection's reader is busy dispatching, so liveness probing
// must stand down: the peer cannot be expected to answer control frames that
// nothing is reading.
func (s *Session) BeginRequest() {
	s.mu.Lock()
	s.inFlight = true
	s.lastActive = time.Now().UTC()
	s.mu.Unlock()
}

// EndRequest marks the end of request handling.
func (s *Session) EndRequest() {
	s.mu.Lock()
	s.inFlight = false
	s.lastActive = time.Now().UTC()
	s.mu.Unlock()
}

// InFlight reports whether a request is currently being handled.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Touch records liveness, called on every inbound message and answered probe.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now().UTC()
	s.mu.Unlock()
}

// LastActive returns the time of the most recent message or answered probe.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// MarkClosed flags the session as terminated. Idempotent.
func (s *Session) MarkClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the session has been terminated.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
