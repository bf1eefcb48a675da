// ABOUTME: The three protocol methods and the invocation gating pipeline:
// ABOUTME: lookup, validation, trust gate, rate limit, signature, execution, audit.

package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conclave-mesh/conclave-gateway/internal/audit"
	"github.com/conclave-mesh/conclave-gateway/internal/capability"
	"github.com/conclave-mesh/conclave-gateway/internal/session"
	"github.com/conclave-mesh/conclave-gateway/internal/signature"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Version is the protocol version advertised in the handshake.
const Version = "1.0"

// ServiceName is the fixed server name reported by handshake and health.
const ServiceName = "conclave-gateway"

// Core wires the registry, verifier, executor and audit sink into the three
// protocol methods. Everything here is read-only after construction.
type Core struct {
	registry *capability.Registry
	executor capability.Executor
	verifier signature.DualVerifier
	sink     audit.Sink
	logger   *slog.Logger

	serverID      string
	serverVersion string

	// trustBeforeRate controls whether a trust-rejected call consumes a
	// rate-limit slot. The default (true) checks trust first, so it does not.
	trustBeforeRate bool

	// invokeTimeout bounds one execution backend call.
	invokeTimeout time.Duration
}

// CoreConfig carries the collaborators a Core needs.
type CoreConfig struct {
	Registry      *capability.Registry
	Executor      capability.Executor
	Verifier      signature.DualVerifier
	Sink          audit.Sink
	Logger        *slog.Logger
	ServerID      string
	ServerVersion string
	// TrustAfterRate flips the trust gate behind the rate increment so
	// trust-rejected attempts count against the window.
	TrustAfterRate bool
	InvokeTimeout  time.Duration
}

// NewCore validates the configuration and builds the method core.
func NewCore(cfg CoreConfig) (*Core, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Verifier.Classical == nil || cfg.Verifier.Quantum == nil {
		return nil, errors.New("both signature schemes are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = audit.NewLogSink(logger)
	}
	timeout := cfg.InvokeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Core{
		registry:        cfg.Registry,
		executor:        cfg.Executor,
		verifier:        cfg.Verifier,
		sink:            sink,
		logger:          logger.With("component", "core"),
		serverID:        cfg.ServerID,
		serverVersion:   cfg.ServerVersion,
		trustBeforeRate: !cfg.TrustAfterRate,
		invokeTimeout:   timeout,
	}, nil
}

// NewRouterFor returns a router with the three methods registered.
func (c *Core) NewRouterFor(logger *slog.Logger) *Router {
	r := NewRouter(logger)
	r.Register(MethodHandshake, c.Handshake)
	r.Register(MethodList, c.ListCapabilities)
	r.Register(MethodInvoke, c.Invoke)
	return r
}

// HandshakeResult is the handshake response payload.
type HandshakeResult struct {
	ProtocolVersion string          `json:"protocol_version"`
	Server          ServerInfo      `json:"server"`
	Capabilities    NegotiationInfo `json:"capabilities"`
	Security        SecurityInfo    `json:"security"`
}

// ServerInfo identifies this gateway instance.
type ServerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NegotiationInfo is the static capability-negotiation descriptor.
type NegotiationInfo struct {
	Methods []string `json:"methods"`
	Listing bool     `json:"listing"`
}

// SecurityInfo carries signature scheme names and the trust-level order.
type SecurityInfo struct {
	SignatureSchemes []string      `json:"signature_schemes"`
	TrustLevels      []trust.Level `json:"trust_levels"`
	QuantumSafe      bool          `json:"quantum_safe"`
}

// Handshake returns protocol version, per-boot server identity and security
// metadata. Idempotent and side-effect free beyond logging.
func (c *Core) Handshake(_ context.Context, sess *session.Session, _ json.RawMessage) (any, *Error) {
	c.logger.Debug("handshake", "session_id", sess.ID, "identity", sess.Identity)
	return HandshakeResult{
		ProtocolVersion: Version,
		Server: ServerInfo{
			ID:      c.serverID,
			Name:    ServiceName,
			Version: c.serverVersion,
		},
		Capabilities: NegotiationInfo{
			Methods: []string{MethodHandshake, MethodList, MethodInvoke},
			Listing: true,
		},
		Security: SecurityInfo{
			SignatureSchemes: c.verifier.SchemeNames(),
			TrustLevels:      trust.Levels(),
			QuantumSafe:      true,
		},
	}, nil
}

// CapabilityInfo is the listing view of one capability.
type CapabilityInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	MinTrust    trust.Level `json:"min_trust"`
	Input       InputInfo   `json:"input"`
	Tags        []string    `json:"tags,omitempty"`
}

// InputInfo describes a capability's argument schema for clients.
type InputInfo struct {
	Required []string             `json:"required,omitempty"`
	Fields   map[string]FieldInfo `json:"fields,omitempty"`
}

// FieldInfo describes one declared argument field.
type FieldInfo struct {
	Type    string   `json:"type"`
	Enum    []string `json:"enum,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// ListResult is the capabilities/list response payload.
type ListResult struct {
	Capabilities []CapabilityInfo `json:"capabilities"`
}

// ListCapabilities returns the registry subset the session's trust level
// admits, in registry order. Deterministic given the trust level.
func (c *Core) ListCapabilities(_ context.Context, sess *session.Session, _ json.RawMessage) (any, *Error) {
	visible := c.registry.ListForLevel(sess.Trust)

	out := ListResult{Capabilities: make([]CapabilityInfo, 0, len(visible))}
	for _, cap := range visible {
		info := CapabilityInfo{
			Name:        cap.Name,
			Description: cap.Description,
			MinTrust:    cap.MinTrust,
			Tags:        cap.Tags,
			Input:       InputInfo{Required: cap.Input.Required},
		}
		if len(cap.Input.Fields) > 0 {
			info.Input.Fields = make(map[string]FieldInfo, len(cap.Input.Fields))
			for name, spec := range cap.Input.Fields {
				info.Input.Fields[name] = FieldInfo{
					Type:    string(spec.Type),
					Enum:    spec.Enum,
					Pattern: spec.Pattern,
				}
			}
		}
		out.Capabilities = append(out.Capabilities, info)
	}

	c.logger.Debug("capabilities/list",
		"session_id", sess.ID,
		"trust", sess.Trust,
		"count", len(out.Capabilities),
	)
	return out, nil
}

// InvokeParams are the capabilities/invoke request params.
type InvokeParams struct {
	Name      string              `json:"name"`
	Arguments map[string]any      `json:"arguments"`
	Signature *signature.Envelope `json:"signature,omitempty"`
}

// InvokeResult is the capabilities/invoke response payload.
type InvokeResult struct {
	Result     map[string]any `json:"result"`
	TrustLevel trust.Level    `json:"trust_level"`
	ExecutedAt time.Time      `json:"executed_at"`
	AuditID    string         `json:"audit_id"`
}

// Invoke runs the full gating pipeline for one capability call. Any stage
// failure short-circuits to a structured error; the connection is never torn
// down here.
func (c *Core) Invoke(ctx context.Context, sess *session.Session, params json.RawMessage) (any, *Error) {
	var p InvokeParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, NewError(CodeInvalidParams, ReasonInvalidParams, err.Error())
	}
	if p.Name == "" {
		return nil, NewError(CodeInvalidParams, ReasonInvalidParams, "capability name is required")
	}
	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}

	cap, err := c.registry.Get(p.Name)
	if err != nil {
		return nil, NewError(CodeCapabilityNotFound, ReasonCapabilityNotFound,
			"unknown capability: "+p.Name)
	}

	if err := cap.Input.Validate(p.Arguments); err != nil {
		return nil, NewError(CodeInvalidParams, ReasonInvalidParams, err.Error())
	}

	if c.trustBeforeRate {
		if herr := c.checkTrust(sess, cap); herr != nil {
			return nil, herr
		}
		if herr := c.checkRate(ctx, sess, cap); herr != nil {
			return nil, herr
		}
	} else {
		if herr := c.checkRate(ctx, sess, cap); herr != nil {
			return nil, herr
		}
		if herr := c.checkTrust(sess, cap); herr != nil {
			return nil, herr
		}
	}

	if herr := c.checkSignature(ctx, sess, cap, p); herr != nil {
		return nil, herr
	}

	execCtx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	defer cancel()

	result, err := c.executor.Execute(execCtx, capability.Invocation{
		Capability: cap.Name,
		Identity:   sess.Identity,
		Trust:      sess.Trust,
		Arguments:  p.Arguments,
	})
	if err != nil {
		c.logger.Warn("capability execution failed",
			"session_id", sess.ID,
			"capability", cap.Name,
			"error", err,
		)
		return nil, NewError(CodeInternalError, ReasonExecutionFailed,
			"capability execution failed")
	}

	rec := audit.NewRecord(audit.KindInvocation, sess.Identity, sess.Trust, cap.Name)
	c.emit(ctx, rec)

	return InvokeResult{
		Result:     result,
		TrustLevel: sess.Trust,
		ExecutedAt: rec.Timestamp,
		AuditID:    rec.ID,
	}, nil
}

func (c *Core) checkTrust(sess *session.Session, cap *capability.Capability) *Error {
	if sess.Trust.AtLeast(cap.MinTrust) {
		return nil
	}
	// Levels are named for observability, not for programmatic branching.
	return NewError(CodeInsufficientTrust, ReasonInsufficientTrust,
		fmt.Sprintf("capability %s requires trust level %s, session has %s",
			cap.Name, cap.MinTrust, sess.Trust))
}

func (c *Core) checkRate(ctx context.Context, sess *session.Session, cap *capability.Capability) *Error {
	d := sess.Allow(ctx, cap.Name, cap.Limit.MaxPerWindow, cap.Limit.Window)
	if d.Allowed {
		return nil
	}
	return NewError(CodeRateLimitExceeded, ReasonRateLimitExceeded,
		fmt.Sprintf("rate limit exceeded for %s: %d per %s, window resets at %s",
			cap.Name, d.Limit, cap.Limit.Window, d.ResetAt.Format(time.RFC3339)))
}

// checkSignature verifies the dual-component signature when one is supplied,
// and requires one when the connection declared quantum signing. Signature
// failures are flagged to the audit sink since they may indicate tampering.
func (c *Core) checkSignature(ctx context.Context, sess *session.Session, cap *capability.Capability, p InvokeParams) *Error {
	if p.Signature == nil {
		if !sess.QuantumSig {
			return nil
		}
		c.auditSignatureFailure(ctx, sess, cap, "signature required but absent")
		return NewError(CodeInvalidSignature, ReasonInvalidSignature,
			"connection requires signed invocations but no signature was supplied")
	}

	message, err := signature.Payload{
		Identity:   sess.Identity,
		Capability: cap.Name,
		Arguments:  p.Arguments,
	}.Canonical()
	if err != nil {
		return NewError(CodeInternalError, ReasonInternalError, "failed to canonicalize payload")
	}

	verr := c.verifier.Verify(sess.Identity, message, p.Signature)
	if verr == nil {
		return nil
	}

	c.auditSignatureFailure(ctx, sess, cap, verr.Error())
	if errors.Is(verr, signature.ErrMissingComponent) {
		return NewError(CodeInvalidSignature, ReasonInvalidSignature, verr.Error())
	}
	return NewError(CodeSignatureFailed, ReasonSignatureFailed, verr.Error())
}

func (c *Core) auditSignatureFailure(ctx context.Context, sess *session.Session, cap *capability.Capability, detail string) {
	rec := audit.NewRecord(audit.KindSignatureFailure, sess.Identity, sess.Trust, cap.Name)
	rec.Detail = map[string]any{"error": detail}
	c.emit(ctx, rec)
}

func (c *Core) emit(ctx context.Context, rec *audit.Record) {
	if err := c.sink.Emit(ctx, rec); err != nil {
		c.logger.Warn("audit emission failed", "audit_id", rec.ID, "error", err)
	}
}

// unmarshalParams decodes method params, treating absent params as empty.
func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed params: %w", err)
	}
	return nil
}
