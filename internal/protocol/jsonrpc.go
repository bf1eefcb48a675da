// ABOUTME: JSON-RPC 2.0 envelope types and the error code taxonomy: the reserved
// ABOUTME: negative range for protocol faults, a separate range for domain faults.

package protocol

import "encoding/json"

// Methods recognized by this server.
const (
	MethodHandshake = "handshake"
	MethodList      = "capabilities/list"
	MethodInvoke    = "capabilities/invoke"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Clients branch on Code and
// Data.Reason; Message is for humans.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the machine-readable reason tag alongside the numeric
// code.
type ErrorData struct {
	Reason string `json:"reason"`
}

// Protocol-envelope error codes (generic RPC fault range).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Domain error codes (JSON-RPC implementation-reserved range). These let a
// client distinguish "you spoke the protocol wrong" from "you are not
// allowed to do that right now" without string matching.
const (
	CodeCapabilityNotFound = -32000
	CodeInsufficientTrust  = -32001
	CodeRateLimitExceeded  = -32002
	CodeInvalidSignature   = -32003
	CodeSignatureFailed    = -32004
)

// Stable reason tags carried in ErrorData.
const (
	ReasonParseError         = "parse_error"
	ReasonInvalidRequest     = "invalid_request"
	ReasonMethodNotFound     = "method_not_found"
	ReasonInvalidParams      = "invalid_params"
	ReasonInternalError      = "internal_error"
	ReasonCapabilityNotFound = "capability_not_found"
	ReasonInsufficientTrust  = "insufficient_trust"
	ReasonRateLimitExceeded  = "rate_limit_exceeded"
	ReasonInvalidSignature   = "invalid_signature"
	ReasonSignatureFailed    = "signature_verification_error"
	ReasonExecutionFailed    = "execution_failed"
)

// NewError builds an error object with its reason tag.
func NewError(code int, reason, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    &ErrorData{Reason: reason},
	}
}

// Error satisfies the error interface so handlers can log these directly.
func (e *Error) Error() string {
	return e.Message
}

// nullID is the id used when the request id could not be recovered.
var nullID = json.RawMessage("null")

func newResult(id json.RawMessage, result any) Response {
	if len(id) == 0 {
		id = nullID
	}
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func newErrorResponse(id json.RawMessage, e *Error) Response {
	if len(id) == 0 {
		id = nullID
	}
	return Response{JSONRPC: "2.0", ID: id, Error: e}
}
