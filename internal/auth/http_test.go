// ABOUTME: Tests for bearer extraction and the admin middleware's 401/403 split.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		token   string
		wantErr bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"empty token", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := BearerToken(tt.header)
			if tt.wantErr {
				assert.NotEmpty(t, errMsg)
			} else {
				assert.Empty(t, errMsg)
				assert.Equal(t, tt.token, token)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	v, err := NewJWTVerifier([]byte("middleware-test-secret"))
	require.NoError(t, err)

	var gotAuth *AuthContext
	handler := Middleware(v, trust.Enterprise)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	do := func(authHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("no token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("").Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage").Code)
	})

	t.Run("insufficient trust", func(t *testing.T) {
		token, err := v.Generate("did:mesh:alice", trust.Verified, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, do("Bearer "+token).Code)
	})

	t.Run("sufficient trust", func(t *testing.T) {
		token, err := v.Generate("did:mesh:alice", trust.Enterprise, time.Hour)
		require.NoError(t, err)
		rec := do("Bearer " + token)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotAuth)
		assert.Equal(t, "did:mesh:alice", gotAuth.Identity)
		assert.Equal(t, trust.Enterprise, gotAuth.Trust)
	})
}
