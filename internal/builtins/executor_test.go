// ABOUTME: Tests for the builtin pack: registry validity, echo semantics, and the
// ABOUTME: persisted rows broadcast and dispatch produce.

package builtins

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mesh/conclave-gateway/internal/capability"
	"github.com/conclave-mesh/conclave-gateway/internal/store"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

func TestDefaults_BuildValidRegistry(t *testing.T) {
	r, err := capability.New(Defaults())
	require.NoError(t, err)
	assert.Equal(t, []string{CapEcho, CapBroadcast, CapDispatch}, r.Names())
}

func TestDefaults_OnePerTrustTier(t *testing.T) {
	byTrust := map[trust.Level]string{}
	for _, c := range Defaults() {
		byTrust[c.MinTrust] = c.Name
	}
	assert.Equal(t, CapEcho, byTrust[trust.Basic])
	assert.Equal(t, CapBroadcast, byTrust[trust.Verified])
	assert.Equal(t, CapDispatch, byTrust[trust.Enterprise])
}

func newExecutorWithStore(t *testing.T) (*Executor, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "builtins.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewExecutor(s, nil), s
}

func TestExecute_Echo(t *testing.T) {
	e := NewExecutor(nil, nil)

	result, err := e.Execute(context.Background(), capability.Invocation{
		Capability: CapEcho,
		Identity:   "did:mesh:alice",
		Trust:      trust.Basic,
		Arguments:  map[string]any{"message": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result["echo"])
	assert.Equal(t, "did:mesh:alice", result["identity"])
}

func TestExecute_EchoUppercase(t *testing.T) {
	e := NewExecutor(nil, nil)

	result, err := e.Execute(context.Background(), capability.Invocation{
		Capability: CapEcho,
		Identity:   "did:mesh:alice",
		Arguments:  map[string]any{"message": "hello", "uppercase": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", result["echo"])
}

func TestExecute_BroadcastPersists(t *testing.T) {
	e, s := newExecutorWithStore(t)
	ctx := context.Background()

	result, err := e.Execute(ctx, capability.Invocation{
		Capability: CapBroadcast,
		Identity:   "did:mesh:alice",
		Trust:      trust.Verified,
		Arguments: map[string]any{
			"channel":     "ops",
			"message":     "deploy starting",
			"priority":    "high",
			"ttl_seconds": float64(300),
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result["announcement_id"])
	assert.Equal(t, "ops", result["channel"])
	assert.Equal(t, "high", result["priority"])

	rows, err := s.ListAnnouncements(ctx, "ops", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, result["announcement_id"], rows[0].ID)
	assert.Equal(t, "deploy starting", rows[0].Message)
	assert.Equal(t, 5*time.Minute, rows[0].TTL)
}

func TestExecute_BroadcastDefaultPriority(t *testing.T) {
	e := NewExecutor(nil, nil)

	result, err := e.Execute(context.Background(), capability.Invocation{
		Capability: CapBroadcast,
		Identity:   "did:mesh:alice",
		Arguments:  map[string]any{"channel": "ops", "message": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "normal", result["priority"])
	assert.NotEmpty(t, result["announcement_id"], "persistence-free execution still returns an id")
}

func TestExecute_DispatchPersists(t *testing.T) {
	e, s := newExecutorWithStore(t)
	ctx := context.Background()

	result, err := e.Execute(ctx, capability.Invocation{
		Capability: CapDispatch,
		Identity:   "did:mesh:alice",
		Trust:      trust.Enterprise,
		Arguments: map[string]any{
			"target":  "did:mesh:worker-1",
			"payload": `{"task":"reindex"}`,
			"mode":    "acknowledged",
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result["dispatch_id"])
	assert.Equal(t, "acknowledged", result["mode"])

	rows, err := s.ListDispatches(ctx, "did:mesh:worker-1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, result["dispatch_id"], rows[0].ID)
	assert.Equal(t, `{"task":"reindex"}`, rows[0].Payload)
}

func TestExecute_DispatchDefaultMode(t *testing.T) {
	e := NewExecutor(nil, nil)

	result, err := e.Execute(context.Background(), capability.Invocation{
		Capability: CapDispatch,
		Identity:   "did:mesh:alice",
		Arguments:  map[string]any{"target": "did:mesh:worker-1", "payload": "{}"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fire_and_forget", result["mode"])
}

func TestExecute_RequiredStringArgumentsChecked(t *testing.T) {
	e := NewExecutor(nil, nil)
	ctx := context.Background()

	// A custom registry file can route these capability names here without
	// declaring the builtin shapes, so the executor must not assume them.
	cases := []struct {
		name string
		inv  capability.Invocation
	}{
		{"broadcast missing channel", capability.Invocation{
			Capability: CapBroadcast,
			Arguments:  map[string]any{"message": "hi"},
		}},
		{"broadcast non-string message", capability.Invocation{
			Capability: CapBroadcast,
			Arguments:  map[string]any{"channel": "ops", "message": 42},
		}},
		{"dispatch missing target", capability.Invocation{
			Capability: CapDispatch,
			Arguments:  map[string]any{"payload": "{}"},
		}},
		{"dispatch non-string payload", capability.Invocation{
			Capability: CapDispatch,
			Arguments:  map[string]any{"target": "did:mesh:w", "payload": true},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Execute(ctx, tc.inv)
			assert.ErrorIs(t, err, capability.ErrInvalidInput)
		})
	}
}

func TestExecute_UnknownCapability(t *testing.T) {
	e := NewExecutor(nil, nil)
	_, err := e.Execute(context.Background(), capability.Invocation{Capability: "mesh/nope"})
	assert.ErrorIs(t, err, capability.ErrNotFound)
}

func TestDefaults_ShapesRejectBadArguments(t *testing.T) {
	r, err := capability.New(Defaults())
	require.NoError(t, err)

	broadcast, err := r.Get(CapBroadcast)
	require.NoError(t, err)

	assert.Error(t, broadcast.Input.Validate(map[string]any{
		"channel": "Ops!", "message": "hi",
	}), "channel pattern must reject uppercase and punctuation")

	assert.Error(t, broadcast.Input.Validate(map[string]any{
		"channel": "ops", "message": "hi", "priority": "urgent",
	}), "priority enum must reject unknown values")

	dispatch, err := r.Get(CapDispatch)
	require.NoError(t, err)
	assert.Error(t, dispatch.Input.Validate(map[string]any{
		"target": "worker-1", "payload": "{}",
	}), "target must be a namespaced identity")
}
