// ABOUTME: Configuration loading and parsing for conclave-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete conclave-gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Registry  RegistryConfig  `yaml:"registry"`
	Keyring   KeyringConfig   `yaml:"keyring"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Audit     AuditConfig     `yaml:"audit"`
	Gating    GatingConfig    `yaml:"gating"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the listen address and protocol timing knobs.
type ServerConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`

	HeartbeatInterval time.Duration `yaml:"-"`
	InvokeTimeout     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	InvokeTimeoutRaw     string `yaml:"invoke_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// DatabaseConfig holds the SQLite database path.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds bearer trust-token configuration. An empty secret
// disables token extraction; connections then rely on header metadata only.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RegistryConfig points at a TOML capability registry file. Empty means the
// builtin default pack.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// KeyringConfig points at the TOML signing keyring file. Empty means an
// empty keyring, so every signed invocation fails verification.
type KeyringConfig struct {
	Path string `yaml:"path"`
}

// RateLimitConfig selects the rate-limit backend. "memory" (default) scopes
// windows to a connection; "redis" shares them across instances and
// reconnects, which deliberately changes the reset-on-reconnect behavior.
type RateLimitConfig struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// AuditConfig selects the audit sink: "sqlite" (default), "postgres", "log".
type AuditConfig struct {
	Sink        string `yaml:"sink"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// GatingConfig orders the trust gate relative to the rate increment. With
// the default (trust first), a trust-rejected call does not consume a
// rate-limit slot.
type GatingConfig struct {
	TrustBeforeRate *bool `yaml:"trust_before_rate"`
}

// TrustFirst reports the effective ordering, defaulting to trust-first.
func (g GatingConfig) TrustFirst() bool {
	return g.TrustBeforeRate == nil || *g.TrustBeforeRate
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default protocol timing values.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultInvokeTimeout     = 30 * time.Second
	DefaultMaxMessageBytes   = 1 << 20
)

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HeartbeatInterval == 0 {
		c.Server.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Server.InvokeTimeout == 0 {
		c.Server.InvokeTimeout = DefaultInvokeTimeout
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.Audit.Sink == "" {
		c.Audit.Sink = "sqlite"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" && c.Audit.Sink == "sqlite" {
		return fmt.Errorf("database.path is required for the sqlite audit sink")
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("ratelimit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("ratelimit.backend must be \"memory\" or \"redis\", got %q", c.RateLimit.Backend)
	}

	switch c.Audit.Sink {
	case "sqlite", "log":
	case "postgres":
		if c.Audit.PostgresDSN == "" {
			return fmt.Errorf("audit.postgres_dsn is required for the postgres sink")
		}
	default:
		return fmt.Errorf("audit.sink must be \"sqlite\", \"postgres\" or \"log\", got %q", c.Audit.Sink)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.HeartbeatIntervalRaw != "" {
		cfg.Server.HeartbeatInterval, err = time.ParseDuration(cfg.Server.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Server.HeartbeatIntervalRaw, err)
		}
	}

	if cfg.Server.InvokeTimeoutRaw != "" {
		cfg.Server.InvokeTimeout, err = time.ParseDuration(cfg.Server.InvokeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invoke_timeout %q: %w", cfg.Server.InvokeTimeoutRaw, err)
		}
	}

	return nil
}
