// ABOUTME: Tests for keyring construction and TOML loading, including rejection of
// ABOUTME: duplicate identities and malformed key encodings.

package signature

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeKeyring(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyring.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing keyring: %v", err)
	}
	return path
}

func TestLoadKeyring(t *testing.T) {
	pub := base64.StdEncoding.EncodeToString(make([]byte, 32))
	secret := base64.StdEncoding.EncodeToString([]byte("secret"))
	path := writeKeyring(t, fmt.Sprintf(`
[[key]]
identity = "did:mesh:alpha"
classical_public = %q
quantum_secret = %q

[[key]]
identity = "did:mesh:beta"
quantum_secret = %q
`, pub, secret, secret))

	kr, err := LoadKeyring(path)
	if err != nil {
		t.Fatalf("LoadKeyring: %v", err)
	}
	if kr.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", kr.Len())
	}

	alpha, ok := kr.Lookup("did:mesh:alpha")
	if !ok {
		t.Fatal("alpha not found")
	}
	if len(alpha.ClassicalPublic) != 32 || string(alpha.QuantumSecret) != "secret" {
		t.Errorf("unexpected alpha entry: %+v", alpha)
	}

	beta, ok := kr.Lookup("did:mesh:beta")
	if !ok {
		t.Fatal("beta not found")
	}
	if len(beta.ClassicalPublic) != 0 {
		t.Errorf("beta should have no classical key, got %d bytes", len(beta.ClassicalPublic))
	}

	if _, ok := kr.Lookup("did:mesh:gamma"); ok {
		t.Error("unexpected entry for unregistered identity")
	}
}

func TestLoadKeyring_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed toml", "[[key"},
		{"empty identity", "[[key]]\nidentity = \"\"\n"},
		{
			"duplicate identity",
			"[[key]]\nidentity = \"did:mesh:a\"\n[[key]]\nidentity = \"did:mesh:a\"\n",
		},
		{"bad classical base64", "[[key]]\nidentity = \"did:mesh:a\"\nclassical_public = \"%%%\"\n"},
		{"bad quantum base64", "[[key]]\nidentity = \"did:mesh:a\"\nquantum_secret = \"%%%\"\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeKeyring(t, tc.content)
			if _, err := LoadKeyring(path); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoadKeyring_MissingFile(t *testing.T) {
	if _, err := LoadKeyring(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
