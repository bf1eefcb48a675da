// ABOUTME: Connection metadata extraction from upgrade headers with documented
// ABOUTME: defaults. Malformed identity claims fall back to the sentinel, not an error.

package session

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Headers carrying connection metadata at WebSocket upgrade.
const (
	HeaderIdentity   = "X-Conclave-Identity"
	HeaderTrust      = "X-Conclave-Trust"
	HeaderAuthMethod = "X-Conclave-Auth-Method"
	HeaderQuantum    = "X-Conclave-Quantum"
)

// IdentityUnknown is the sentinel substituted for absent or malformed
// identity claims. Extraction is liberal by design: it is not a security
// boundary, and callers must not treat a claim as authenticated.
const IdentityUnknown = "unknown"

// Declared authentication methods.
const (
	AuthMethodStandard = "standard"
	AuthMethodToken    = "token"
)

var identityPattern = regexp.MustCompile(`^did:mesh:[A-Za-z0-9_-]+$`)

// ValidIdentity reports whether s is a well-formed namespaced identity claim.
func ValidIdentity(s string) bool {
	return identityPattern.MatchString(s)
}

// Metadata is the four-field connection context extracted at establishment.
type Metadata struct {
	Identity   string
	Trust      trust.Level
	AuthMethod string
	QuantumSig bool
}

// DefaultMetadata returns the documented fallback values.
func DefaultMetadata() Metadata {
	return Metadata{
		Identity:   IdentityUnknown,
		Trust:      trust.Basic,
		AuthMethod: AuthMethodStandard,
	}
}

// FromHeader extracts connection metadata from upgrade headers. Every field
// falls back to its default independently when absent or invalid.
func FromHeader(h http.Header) Metadata {
	md := DefaultMetadata()

	if id := strings.TrimSpace(h.Get(HeaderIdentity)); ValidIdentity(id) {
		md.Identity = id
	}
	if level, ok := trust.Parse(h.Get(HeaderTrust)); ok {
		md.Trust = level
	}
	if method := strings.ToLower(strings.TrimSpace(h.Get(HeaderAuthMethod))); method != "" {
		md.AuthMethod = method
	}
	if q, err := strconv.ParseBool(strings.TrimSpace(h.Get(HeaderQuantum))); err == nil {
		md.QuantumSig = q
	}

	return md
}
