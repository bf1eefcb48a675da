// ABOUTME: Tests for session creation, per-session rate windows, and the manager's
// ABOUTME: registration bookkeeping.

package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

func TestNew_Defaults(t *testing.T) {
	s := New(DefaultMetadata(), nil)

	if s.ID == "" {
		t.Error("expected generated session ID")
	}
	if s.Identity != IdentityUnknown {
		t.Errorf("expected sentinel identity, got %q", s.Identity)
	}
	if s.Trust != trust.Basic {
		t.Errorf("expected basic trust, got %q", s.Trust)
	}
	if s.AuthMethod != AuthMethodStandard {
		t.Errorf("expected standard auth method, got %q", s.AuthMethod)
	}
	if s.QuantumSig {
		t.Error("quantum signature flag should default false")
	}
}

func TestSession_WindowsAreConnectionScoped(t *testing.T) {
	meta := DefaultMetadata()
	meta.Identity = "did:mesh:alpha"
	ctx := context.Background()

	first := New(meta, nil)
	if d := first.Allow(ctx, "mesh/echo", 1, time.Minute); !d.Allowed {
		t.Fatalf("first attempt should pass: %+v", d)
	}
	if d := first.Allow(ctx, "mesh/echo", 1, time.Minute); d.Allowed {
		t.Fatalf("second attempt should be limited: %+v", d)
	}

	// A reconnect produces a new session and therefore fresh windows.
	second := New(meta, nil)
	if d := second.Allow(ctx, "mesh/echo", 1, time.Minute); !d.Allowed {
		t.Errorf("new session must start with empty windows: %+v", d)
	}
}

func TestSession_Liveness(t *testing.T) {
	s := New(DefaultMetadata(), nil)
	before := s.LastActive()

	time.Sleep(5 * time.Millisecond)
	s.Touch()
	if !s.LastActive().After(before) {
		t.Error("Touch did not advance last-active time")
	}

	if s.Closed() {
		t.Error("new session must not be closed")
	}
	s.MarkClosed()
	if !s.Closed() {
		t.Error("MarkClosed did not take effect")
	}
}

func TestSession_InFlight(t *testing.T) {
	s := New(DefaultMetadata(), nil)
	if s.InFlight() {
		t.Error("new session must not report a request in flight")
	}
	before := s.LastActive()

	time.Sleep(5 * time.Millisecond)
	s.BeginRequest()
	if !s.InFlight() {
		t.Error("BeginRequest did not mark the session in flight")
	}
	s.EndRequest()
	if s.InFlight() {
		t.Error("EndRequest did not clear the in-flight mark")
	}
	if !s.LastActive().After(before) {
		t.Error("request handling did not advance last-active time")
	}
}

func TestManager_RegisterUnregister(t *testing.T) {
	m := NewManager(slog.Default())

	s := New(DefaultMetadata(), nil)
	if err := m.Register(s); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 session, got %d", m.Count())
	}

	if err := m.Register(s); err != ErrAlreadyRegistered {
		t.Errorf("expected ErrAlreadyRegistered, got %v", err)
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Error("Get did not return the registered session")
	}

	m.Unregister(s.ID)
	if m.Count() != 0 {
		t.Errorf("expected 0 sessions after unregister, got %d", m.Count())
	}
	if !s.Closed() {
		t.Error("unregister must mark the session closed")
	}

	// Unknown IDs are ignored.
	m.Unregister("nope")
}

func TestManager_Snapshot(t *testing.T) {
	m := NewManager(slog.Default())

	meta := DefaultMetadata()
	meta.Identity = "did:mesh:alpha"
	meta.Trust = trust.Enterprise
	meta.QuantumSig = true
	s := New(meta, nil)
	if err := m.Register(s); err != nil {
		t.Fatalf("Register: %v", err)
	}

	infos := m.Snapshot()
	if len(infos) != 1 {
		t.Fatalf("expected 1 info, got %d", len(infos))
	}
	info := infos[0]
	if info.Identity != "did:mesh:alpha" || info.Trust != trust.Enterprise || !info.QuantumSig {
		t.Errorf("unexpected snapshot: %+v", info)
	}
}
