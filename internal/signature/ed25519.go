// ABOUTME: Classical signature scheme backed by Ed25519 public keys from the keyring.

package signature

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// Ed25519 verifies classical components against each identity's registered
// public key.
type Ed25519 struct {
	keys *Keyring
}

// NewEd25519 returns the classical scheme over the given keyring.
func NewEd25519(keys *Keyring) *Ed25519 {
	return &Ed25519{keys: keys}
}

func (s *Ed25519) Name() string {
	return "ed25519"
}

func (s *Ed25519) Verify(identity string, message, sig []byte) error {
	entry, ok := s.keys.Lookup(identity)
	if !ok || len(entry.ClassicalPublic) == 0 {
		return fmt.Errorf("no classical key registered for %s", identity)
	}
	if len(entry.ClassicalPublic) != ed25519.PublicKeySize {
		return fmt.Errorf("classical key for %s has size %d, want %d",
			identity, len(entry.ClassicalPublic), ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(entry.ClassicalPublic), message, sig) {
		return errors.New("ed25519 signature does not verify")
	}
	return nil
}
