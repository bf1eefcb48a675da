// ABOUTME: Tests for envelope parsing and dispatch: parse errors, structural
// ABOUTME: rejections, unknown methods, and the one-response-per-payload contract.

package protocol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mesh/conclave-gateway/internal/session"
)

func newTestSession() *session.Session {
	return session.New(session.DefaultMetadata(), nil)
}

func dispatch(t *testing.T, r *Router, sess *session.Session, raw string) Response {
	t.Helper()
	out := r.Dispatch(context.Background(), sess, []byte(raw))
	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func TestRouter_ParseError(t *testing.T) {
	r := NewRouter(nil)
	sess := newTestSession()

	resp := dispatch(t, r, sess, `{not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
	assert.Equal(t, ReasonParseError, resp.Error.Data.Reason)
	assert.Equal(t, "null", string(resp.ID), "unrecoverable id must be null")
}

func TestRouter_InvalidEnvelope(t *testing.T) {
	r := NewRouter(nil)
	sess := newTestSession()

	tests := []struct {
		name string
		raw  string
	}{
		{"missing jsonrpc marker", `{"id":1,"method":"handshake"}`},
		{"wrong jsonrpc version", `{"jsonrpc":"1.0","id":1,"method":"handshake"}`},
		{"missing id", `{"jsonrpc":"2.0","method":"handshake"}`},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"handshake"}`},
		{"missing method", `{"jsonrpc":"2.0","id":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := dispatch(t, r, sess, tt.raw)
			require.NotNil(t, resp.Error)
			assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
			assert.Equal(t, ReasonInvalidRequest, resp.Error.Data.Reason)
		})
	}
}

func TestRouter_MethodNotFound(t *testing.T) {
	r := NewRouter(nil)
	sess := newTestSession()

	resp := dispatch(t, r, sess, `{"jsonrpc":"2.0","id":7,"method":"no/such/method"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, ReasonMethodNotFound, resp.Error.Data.Reason)
	assert.Equal(t, "7", string(resp.ID), "id must be echoed back")
}

func TestRouter_DispatchResult(t *testing.T) {
	r := NewRouter(nil)
	r.Register("ping", func(_ context.Context, _ *session.Session, params json.RawMessage) (any, *Error) {
		return map[string]any{"pong": true}, nil
	})
	sess := newTestSession()

	resp := dispatch(t, r, sess, `{"jsonrpc":"2.0","id":"abc","method":"ping"}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, `"abc"`, string(resp.ID))

	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["pong"])
}

func TestRouter_HandlerError(t *testing.T) {
	r := NewRouter(nil)
	r.Register("fail", func(_ context.Context, _ *session.Session, _ json.RawMessage) (any, *Error) {
		return nil, NewError(CodeInsufficientTrust, ReasonInsufficientTrust, "no")
	})
	sess := newTestSession()

	resp := dispatch(t, r, sess, `{"jsonrpc":"2.0","id":1,"method":"fail"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInsufficientTrust, resp.Error.Code)
	assert.Nil(t, resp.Result)
}

// Any failure yields an error response on the same connection; the session
// keeps dispatching afterwards.
func TestRouter_ErrorsDoNotPoisonTheSession(t *testing.T) {
	r := NewRouter(nil)
	r.Register("ping", func(_ context.Context, _ *session.Session, _ json.RawMessage) (any, *Error) {
		return map[string]any{"pong": true}, nil
	})
	sess := newTestSession()

	bad := dispatch(t, r, sess, `garbage`)
	require.NotNil(t, bad.Error)

	missing := dispatch(t, r, sess, `{"jsonrpc":"2.0","id":2,"method":"nope"}`)
	require.NotNil(t, missing.Error)

	good := dispatch(t, r, sess, `{"jsonrpc":"2.0","id":3,"method":"ping"}`)
	require.Nil(t, good.Error)
	assert.NotNil(t, good.Result)
}

func TestRouter_Methods(t *testing.T) {
	r := NewRouter(nil)
	r.Register("a", nil)
	r.Register("b", nil)
	assert.ElementsMatch(t, []string{"a", "b"}, r.Methods())
}
