// ABOUTME: Post-quantum component scheme advertising the ML-DSA-65 parameter set.
// ABOUTME: Verification is a keyed SHAKE-256 tag pending a real lattice backend.

package signature

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// quantumTagSize is the length of the stand-in signature tag.
const quantumTagSize = 64

// MLDSA65 fills the post-quantum slot of the dual verifier. The tag scheme
// here is symmetric (SHAKE-256 over a per-identity secret and the message);
// a genuine ML-DSA verifier replaces it behind the same Scheme interface
// without touching protocol code.
type MLDSA65 struct {
	keys *Keyring
}

// NewMLDSA65 returns the post-quantum scheme over the given keyring.
func NewMLDSA65(keys *Keyring) *MLDSA65 {
	return &MLDSA65{keys: keys}
}

func (s *MLDSA65) Name() string {
	return "ml-dsa-65"
}

func (s *MLDSA65) Verify(identity string, message, sig []byte) error {
	entry, ok := s.keys.Lookup(identity)
	if !ok || len(entry.QuantumSecret) == 0 {
		return fmt.Errorf("no quantum secret registered for %s", identity)
	}
	expected := QuantumTag(entry.QuantumSecret, message)
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return fmt.Errorf("ml-dsa tag does not verify")
	}
	return nil
}

// QuantumTag derives the tag a caller presents as its post-quantum
// component: SHAKE-256 over the shared secret and the canonical message.
func QuantumTag(secret, message []byte) []byte {
	h := sha3.NewShake256()
	h.Write(secret)
	h.Write(message)
	out := make([]byte, quantumTagSize)
	h.Read(out)
	return out
}
