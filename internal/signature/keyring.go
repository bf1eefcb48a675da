// ABOUTME: Per-identity verification key material, loaded once from a TOML file.
// ABOUTME: Identities absent from the keyring can never verify (fail closed).

package signature

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// KeyEntry holds the verification material registered for one identity.
type KeyEntry struct {
	ClassicalPublic []byte
	QuantumSecret   []byte
}

// Keyring maps identity claims to key material. Immutable after
// construction; safe for concurrent reads.
type Keyring struct {
	entries map[string]KeyEntry
}

// NewKeyring builds a keyring from already-decoded entries.
func NewKeyring(entries map[string]KeyEntry) *Keyring {
	copied := make(map[string]KeyEntry, len(entries))
	for id, e := range entries {
		copied[id] = e
	}
	return &Keyring{entries: copied}
}

// Lookup returns the key material for identity, if registered.
func (k *Keyring) Lookup(identity string) (KeyEntry, bool) {
	e, ok := k.entries[identity]
	return e, ok
}

// Len returns the number of registered identities.
func (k *Keyring) Len() int {
	return len(k.entries)
}

type keyringFile struct {
	Keys []keyringFileEntry `toml:"key"`
}

type keyringFileEntry struct {
	Identity        string `toml:"identity"`
	ClassicalPublic string `toml:"classical_public"`
	QuantumSecret   string `toml:"quantum_secret"`
}

// LoadKeyring reads a TOML keyring file. Key components are base64.
func LoadKeyring(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyring file: %w", err)
	}

	var kf keyringFile
	if _, err := toml.Decode(string(data), &kf); err != nil {
		return nil, fmt.Errorf("parsing keyring file: %w", err)
	}

	entries := make(map[string]KeyEntry, len(kf.Keys))
	for _, fe := range kf.Keys {
		if fe.Identity == "" {
			return nil, fmt.Errorf("keyring entry with empty identity")
		}
		if _, dup := entries[fe.Identity]; dup {
			return nil, fmt.Errorf("keyring entry %q: duplicate identity", fe.Identity)
		}

		var entry KeyEntry
		if fe.ClassicalPublic != "" {
			entry.ClassicalPublic, err = base64.StdEncoding.DecodeString(fe.ClassicalPublic)
			if err != nil {
				return nil, fmt.Errorf("keyring entry %q: classical_public is not base64: %w", fe.Identity, err)
			}
		}
		if fe.QuantumSecret != "" {
			entry.QuantumSecret, err = base64.StdEncoding.DecodeString(fe.QuantumSecret)
			if err != nil {
				return nil, fmt.Errorf("keyring entry %q: quantum_secret is not base64: %w", fe.Identity, err)
			}
		}
		entries[fe.Identity] = entry
	}

	return &Keyring{entries: entries}, nil
}
