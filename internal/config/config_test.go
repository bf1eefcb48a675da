// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, durations, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conclave.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/conclave-test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("http_addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("heartbeat default = %v", cfg.Server.HeartbeatInterval)
	}
	if cfg.Server.InvokeTimeout != DefaultInvokeTimeout {
		t.Errorf("invoke timeout default = %v", cfg.Server.InvokeTimeout)
	}
	if cfg.Server.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Errorf("max message bytes default = %d", cfg.Server.MaxMessageBytes)
	}
	if cfg.RateLimit.Backend != "memory" {
		t.Errorf("ratelimit backend default = %q", cfg.RateLimit.Backend)
	}
	if cfg.Audit.Sink != "sqlite" {
		t.Errorf("audit sink default = %q", cfg.Audit.Sink)
	}
	if !cfg.Gating.TrustFirst() {
		t.Error("gating must default to trust-first")
	}
}

func TestLoad_Durations(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
  heartbeat_interval: "10s"
  invoke_timeout: "5s"
database:
  path: "/tmp/conclave-test.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HeartbeatInterval != 10*time.Second {
		t.Errorf("heartbeat_interval = %v", cfg.Server.HeartbeatInterval)
	}
	if cfg.Server.InvokeTimeout != 5*time.Second {
		t.Errorf("invoke_timeout = %v", cfg.Server.InvokeTimeout)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
  heartbeat_interval: "soon"
database:
  path: "/tmp/conclave-test.db"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CONCLAVE_TEST_SECRET", "s3cret")

	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/conclave-test.db"
auth:
  jwt_secret: "${CONCLAVE_TEST_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt_secret = %q, want expanded env value", cfg.Auth.JWTSecret)
	}
}

func TestLoad_GatingFlip(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/conclave-test.db"
gating:
  trust_before_rate: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gating.TrustFirst() {
		t.Error("trust_before_rate: false must flip the ordering")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"missing http addr",
			`
database:
  path: "/tmp/conclave-test.db"
`,
		},
		{
			"tailscale without hostname",
			`
tailscale:
  enabled: true
database:
  path: "/tmp/conclave-test.db"
`,
		},
		{
			"sqlite sink without database path",
			`
server:
  http_addr: "127.0.0.1:8080"
`,
		},
		{
			"unknown ratelimit backend",
			`
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/conclave-test.db"
ratelimit:
  backend: "carrier-pigeon"
`,
		},
		{
			"redis backend without addr",
			`
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/conclave-test.db"
ratelimit:
  backend: "redis"
`,
		},
		{
			"postgres sink without dsn",
			`
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "/tmp/conclave-test.db"
audit:
  sink: "postgres"
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_LogSinkNeedsNoDatabase(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"
audit:
  sink: "log"
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("log sink must not require a database path: %v", err)
	}
}
