// ABOUTME: Method dispatch over a registered handler map. Adding a method is a
// ABOUTME: registration action, not an edit to a switch statement.

package protocol

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/conclave-mesh/conclave-gateway/internal/session"
)

// Handler processes one method's params for a session and returns either a
// result payload or a protocol error. Handlers never tear down the
// connection; transport faults are the caller's concern.
type Handler func(ctx context.Context, sess *session.Session, params json.RawMessage) (any, *Error)

// Router parses inbound envelopes and dispatches them to registered
// handlers. One response envelope is produced for every inbound payload,
// however malformed.
type Router struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "protocol"),
	}
}

// Register installs a handler for a method name. Registration happens at
// startup, before any Dispatch call; the map is read-only afterwards.
func (r *Router) Register(method string, h Handler) {
	r.handlers[method] = h
}

// Methods returns the registered method names.
func (r *Router) Methods() []string {
	out := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		out = append(out, m)
	}
	return out
}

// Dispatch handles one raw inbound payload to completion and returns the
// serialized response. Envelope failures yield structured errors and leave
// the connection's liveness state alone.
func (r *Router) Dispatch(ctx context.Context, sess *session.Session, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		r.logger.Debug("parse failure", "session_id", sess.ID, "error", err)
		return marshalResponse(r.logger, newErrorResponse(nil,
			NewError(CodeParseError, ReasonParseError, "request is not valid JSON")))
	}

	if env := validateEnvelope(req); env != nil {
		return marshalResponse(r.logger, newErrorResponse(req.ID, env))
	}

	h, ok := r.handlers[req.Method]
	if !ok {
		r.logger.Debug("unknown method", "session_id", sess.ID, "method", req.Method)
		return marshalResponse(r.logger, newErrorResponse(req.ID,
			NewError(CodeMethodNotFound, ReasonMethodNotFound, "method not found: "+req.Method)))
	}

	result, herr := h(ctx, sess, req.Params)
	if herr != nil {
		r.logger.Debug("request failed",
			"session_id", sess.ID,
			"method", req.Method,
			"code", herr.Code,
			"reason", herr.Data.Reason,
		)
		return marshalResponse(r.logger, newErrorResponse(req.ID, herr))
	}

	return marshalResponse(r.logger, newResult(req.ID, result))
}

// validateEnvelope checks the structural requirements beyond JSON
// well-formedness: version marker, correlation id, method name.
func validateEnvelope(req Request) *Error {
	if req.JSONRPC != "2.0" {
		return NewError(CodeInvalidRequest, ReasonInvalidRequest, "jsonrpc must be \"2.0\"")
	}
	if len(req.ID) == 0 || string(req.ID) == "null" {
		return NewError(CodeInvalidRequest, ReasonInvalidRequest, "request id is required")
	}
	if req.Method == "" {
		return NewError(CodeInvalidRequest, ReasonInvalidRequest, "method is required")
	}
	return nil
}

func marshalResponse(logger *slog.Logger, resp Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		// Result payloads are maps and strings built by our own handlers;
		// this only fires if a backend returns something unmarshalable.
		logger.Warn("failed to marshal response", "error", err)
		fallback := newErrorResponse(resp.ID,
			NewError(CodeInternalError, ReasonInternalError, "failed to encode response"))
		out, _ = json.Marshal(fallback)
	}
	return out
}
