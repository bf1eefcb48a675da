// ABOUTME: Fixed-window rate limiting with count-then-check semantics so rejected
// ABOUTME: attempts still consume the window. In-memory state is per-session.

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow applies when a caller passes a non-positive window.
const DefaultWindow = time.Minute

// Decision is the outcome of one invocation attempt against a window.
// Count includes the attempt being decided, so a denied attempt has
// Count > Limit.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts invocation attempts per key within fixed windows. The
// attempt is recorded before the limit is checked: retrying into a full
// window keeps consuming it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
}

type entry struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process Limiter. A fresh instance per session gives
// connection-scoped counters that die with the connection; reconnecting
// therefore starts every window over.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewMemory returns an empty in-process limiter.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]entry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Allow records an attempt for key and decides it. A window whose reset time
// has been reached is replaced wholesale before counting.
func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = DefaultWindow
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok || !now.Before(e.resetAt) {
		e = entry{resetAt: now.Add(window)}
	}
	e.count++
	m.items[key] = e

	remaining := limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   e.count <= limit,
		Count:     e.count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}
