// ABOUTME: Default capability definitions: mesh/echo (basic), mesh/broadcast
// ABOUTME: (verified), mesh/dispatch (enterprise). Used when no registry file is set.

package builtins

import (
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/capability"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Capability names in the default pack.
const (
	CapEcho      = "mesh/echo"
	CapBroadcast = "mesh/broadcast"
	CapDispatch  = "mesh/dispatch"
)

// Defaults returns the builtin capability definitions, one per trust tier.
func Defaults() []capability.Capability {
	return []capability.Capability{
		{
			Name:        CapEcho,
			Description: "Echo the supplied message back to the caller",
			MinTrust:    trust.Basic,
			Limit:       capability.RatePolicy{MaxPerWindow: 60, Window: time.Minute},
			Tags:        []string{"diagnostic"},
			Input: capability.InputShape{
				Required: []string{"message"},
				Fields: map[string]capability.FieldSpec{
					"message": {Type: capability.FieldString},
					"uppercase": {
						Type: capability.FieldBoolean,
					},
				},
			},
		},
		{
			Name:        CapBroadcast,
			Description: "Post an announcement to a mesh channel",
			MinTrust:    trust.Verified,
			Limit:       capability.RatePolicy{MaxPerWindow: 20, Window: time.Minute},
			Tags:        []string{"messaging"},
			Input: capability.InputShape{
				Required: []string{"channel", "message"},
				Fields: map[string]capability.FieldSpec{
					"channel": {
						Type:    capability.FieldString,
						Pattern: `^[a-z0-9][a-z0-9-]*$`,
					},
					"message": {Type: capability.FieldString},
					"priority": {
						Type: capability.FieldString,
						Enum: []string{"low", "normal", "high"},
					},
					"ttl_seconds": {Type: capability.FieldNumber},
				},
			},
		},
		{
			Name:        CapDispatch,
			Description: "Dispatch a payload to a single mesh agent",
			MinTrust:    trust.Enterprise,
			Limit:       capability.RatePolicy{MaxPerWindow: 10, Window: time.Minute},
			Tags:        []string{"messaging", "directed"},
			Input: capability.InputShape{
				Required: []string{"target", "payload"},
				Fields: map[string]capability.FieldSpec{
					"target": {
						Type:    capability.FieldString,
						Pattern: `^did:mesh:[A-Za-z0-9_-]+$`,
					},
					"payload": {Type: capability.FieldString},
					"mode": {
						Type: capability.FieldString,
						Enum: []string{"fire_and_forget", "acknowledged"},
					},
				},
			},
		},
	}
}
