// ABOUTME: Dual-component signature verification: a classical and a post-quantum
// ABOUTME: scheme must both pass over the canonical invocation payload.

package signature

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingComponent indicates the signature object or one of its two
// components was not supplied.
var ErrMissingComponent = errors.New("signature component missing")

// ErrVerificationFailed indicates both components were supplied but at least
// one did not verify. Distinct from ErrMissingComponent by contract.
var ErrVerificationFailed = errors.New("signature verification failed")

// Envelope is the wire shape of a dual-component signature: two opaque
// base64 strings, one per scheme.
type Envelope struct {
	Classical string `json:"classical"`
	Quantum   string `json:"quantum"`
}

// Scheme verifies one signature component for an identity. Implementations
// carry their own key material; the protocol core depends on nothing beyond
// this contract.
type Scheme interface {
	Name() string
	Verify(identity string, message, sig []byte) error
}

// Payload binds the fields both components sign. Canonical serialization is
// encoding/json of the payload struct: fixed field order, map keys sorted by
// the encoder, no insignificant whitespace — reproducible on both ends.
type Payload struct {
	Identity   string         `json:"identity"`
	Capability string         `json:"capability"`
	Arguments  map[string]any `json:"arguments"`
}

// Canonical returns the byte string signatures are computed over.
func (p Payload) Canonical() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing payload: %w", err)
	}
	return b, nil
}

// DualVerifier requires both components present and both schemes passing.
type DualVerifier struct {
	Classical Scheme
	Quantum   Scheme
}

// Verify checks env against message for identity. A nil envelope or an empty
// component yields ErrMissingComponent; anything supplied but unverifiable
// yields ErrVerificationFailed. The two cases never collapse.
func (v DualVerifier) Verify(identity string, message []byte, env *Envelope) error {
	if env == nil {
		return fmt.Errorf("%w: signature object absent", ErrMissingComponent)
	}
	if env.Classical == "" {
		return fmt.Errorf("%w: classical component absent", ErrMissingComponent)
	}
	if env.Quantum == "" {
		return fmt.Errorf("%w: post-quantum component absent", ErrMissingComponent)
	}

	classicalSig, err := base64.StdEncoding.DecodeString(env.Classical)
	if err != nil {
		return fmt.Errorf("%w: classical component is not base64: %v", ErrVerificationFailed, err)
	}
	quantumSig, err := base64.StdEncoding.DecodeString(env.Quantum)
	if err != nil {
		return fmt.Errorf("%w: post-quantum component is not base64: %v", ErrVerificationFailed, err)
	}

	if err := v.Classical.Verify(identity, message, classicalSig); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrVerificationFailed, v.Classical.Name(), err)
	}
	if err := v.Quantum.Verify(identity, message, quantumSig); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrVerificationFailed, v.Quantum.Name(), err)
	}
	return nil
}

// SchemeNames lists the scheme pair for handshake security metadata.
func (v DualVerifier) SchemeNames() []string {
	return []string{v.Classical.Name(), v.Quantum.Name()}
}
