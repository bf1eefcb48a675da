// Package config handles configuration loading for conclave-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CONCLAVE_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  heartbeat_interval: "30s"
//	  invoke_timeout: "30s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  max_message_bytes: 1048576
//	  heartbeat_interval: "30s"
//	  invoke_timeout: "30s"
//
// Capability registry and signing keyring (TOML files; empty paths mean the
// builtin pack and an empty keyring):
//
//	registry:
//	  path: "/etc/conclave/registry.toml"
//	keyring:
//	  path: "/etc/conclave/keyring.toml"
//
// Rate limiting and audit backends:
//
//	ratelimit:
//	  backend: "memory"    # memory, redis
//	audit:
//	  sink: "sqlite"       # sqlite, postgres, log
//
// Gating order (see the protocol core for semantics):
//
//	gating:
//	  trust_before_rate: true
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "conclave-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
