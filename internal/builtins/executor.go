// ABOUTME: Execution backend for the builtin pack. Echo is pure; broadcast and
// ABOUTME: dispatch persist rows through the store.

package builtins

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-mesh/conclave-gateway/internal/capability"
	"github.com/conclave-mesh/conclave-gateway/internal/store"
)

// Executor runs the builtin capabilities. It satisfies capability.Executor;
// arguments arrive already validated against the pack's input shapes.
type Executor struct {
	store  store.Store
	logger *slog.Logger
}

// NewExecutor returns the builtin backend. A nil store disables persistence:
// broadcast and dispatch then return their row values without writing them.
func NewExecutor(s store.Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:  s,
		logger: logger.With("component", "builtins"),
	}
}

// Execute dispatches an invocation to its capability's handler.
func (e *Executor) Execute(ctx context.Context, inv capability.Invocation) (map[string]any, error) {
	switch inv.Capability {
	case CapEcho:
		return e.echo(inv)
	case CapBroadcast:
		return e.broadcast(ctx, inv)
	case CapDispatch:
		return e.dispatch(ctx, inv)
	default:
		return nil, fmt.Errorf("%w: %s", capability.ErrNotFound, inv.Capability)
	}
}

func (e *Executor) echo(inv capability.Invocation) (map[string]any, error) {
	message, _ := inv.Arguments["message"].(string)
	if upper, _ := inv.Arguments["uppercase"].(bool); upper {
		message = strings.ToUpper(message)
	}
	return map[string]any{
		"echo":     message,
		"identity": inv.Identity,
	}, nil
}

func (e *Executor) broadcast(ctx context.Context, inv capability.Invocation) (map[string]any, error) {
	channel, err := argString(inv.Arguments, "channel")
	if err != nil {
		return nil, err
	}
	message, err := argString(inv.Arguments, "message")
	if err != nil {
		return nil, err
	}
	a := &store.Announcement{
		ID:       uuid.New().String(),
		Identity: inv.Identity,
		Channel:  channel,
		Message:  message,
		Priority: "normal",
	}
	if p, ok := inv.Arguments["priority"].(string); ok {
		a.Priority = p
	}
	if ttl, ok := argNumber(inv.Arguments["ttl_seconds"]); ok {
		a.TTL = time.Duration(ttl) * time.Second
	}

	if e.store != nil {
		if err := e.store.SaveAnnouncement(ctx, a); err != nil {
			return nil, fmt.Errorf("persisting announcement: %w", err)
		}
	}

	e.logger.Info("announcement posted",
		"channel", a.Channel,
		"identity", a.Identity,
		"priority", a.Priority,
	)
	return map[string]any{
		"announcement_id": a.ID,
		"channel":         a.Channel,
		"priority":        a.Priority,
	}, nil
}

func (e *Executor) dispatch(ctx context.Context, inv capability.Invocation) (map[string]any, error) {
	target, err := argString(inv.Arguments, "target")
	if err != nil {
		return nil, err
	}
	payload, err := argString(inv.Arguments, "payload")
	if err != nil {
		return nil, err
	}
	d := &store.Dispatch{
		ID:       uuid.New().String(),
		Identity: inv.Identity,
		Target:   target,
		Payload:  payload,
		Mode:     "fire_and_forget",
	}
	if m, ok := inv.Arguments["mode"].(string); ok {
		d.Mode = m
	}

	if e.store != nil {
		if err := e.store.SaveDispatch(ctx, d); err != nil {
			return nil, fmt.Errorf("persisting dispatch: %w", err)
		}
	}

	e.logger.Info("dispatch recorded",
		"target", d.Target,
		"identity", d.Identity,
		"mode", d.Mode,
	)
	return map[string]any{
		"dispatch_id": d.ID,
		"target":      d.Target,
		"mode":        d.Mode,
	}, nil
}

// argString extracts a required string argument. The builtin shapes declare
// these fields, but a custom registry pointed at this executor may not, so
// absence or a wrong type is an input error rather than a panic.
func argString(args map[string]any, name string) (string, error) {
	s, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q must be a string", capability.ErrInvalidInput, name)
	}
	return s, nil
}

// argNumber converts a validated number argument, which arrives as float64
// from JSON decoding or as a Go integer from direct callers.
func argNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
