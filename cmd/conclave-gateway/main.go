// ABOUTME: Entry point for the conclave-gateway daemon: trust-gated capability
// ABOUTME: server over persistent connections.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/conclave-mesh/conclave-gateway/internal/config"
	"github.com/conclave-mesh/conclave-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                          _
  ___ ___  _ __   ___| | __ ___   _____
 / __/ _ \| '_ \ / __| |/ _' \ \ / / _ \
| (_| (_) | | | | (__| | (_| |\ V /  __/
 \___\___/|_| |_|\___|_|\__,_| \_/ \___|  gateway
`

// getConfigPath returns the path to the gateway config file.
// Priority: CONCLAVE_CONFIG env var > XDG_CONFIG_HOME/conclave/gateway.yaml >
// ~/.config/conclave/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CONCLAVE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "conclave", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: conclave-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  init      Write starter config, registry and keyring files")
		fmt.Println("  health    Check gateway health")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Registry: %s\n", registryLabel(cfg))
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Tailnet:  ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting conclave-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"ratelimit_backend", cfg.RateLimit.Backend,
		"audit_sink", cfg.Audit.Sink,
	)

	gw, err := gateway.New(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func registryLabel(cfg *config.Config) string {
	if cfg.Registry.Path != "" {
		return cfg.Registry.Path
	}
	return "builtin"
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs), then record attrs.
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var health struct {
		Status      string `json:"status"`
		Service     string `json:"service"`
		Version     string `json:"version"`
		Connections int    `json:"connections"`
		QuantumSafe bool   `json:"quantum_safe"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("%s %s (%s): %d connections, quantum_safe=%v\n",
		health.Service, health.Version, health.Status, health.Connections, health.QuantumSafe)
	return nil
}

const starterConfig = `server:
  http_addr: "127.0.0.1:8080"
  heartbeat_interval: "30s"
  invoke_timeout: "30s"

database:
  path: "%s"

auth:
  jwt_secret: "${CONCLAVE_JWT_SECRET}"

registry:
  path: "%s"

keyring:
  path: "%s"

ratelimit:
  backend: "memory"

audit:
  sink: "sqlite"

logging:
  level: "info"
  format: "text"
`

const starterRegistry = `# Capability registry. Each capability declares its input shape, minimum
# trust level, and rate-limit policy.

[[capability]]
name = "mesh/echo"
description = "Echo the supplied message back to the caller"
min_trust = "basic"
tags = ["diagnostic"]

  [capability.limit]
  max_per_window = 60
  window = "60s"

  [capability.input]
  required = ["message"]

    [capability.input.fields.message]
    type = "string"
`

const starterKeyring = `# Signing keyring. Each entry registers an identity's classical public key
# (ed25519, base64) and post-quantum secret (base64).
#
# [[key]]
# identity = "did:mesh:example"
# classical_public = "..."
# quantum_secret = "..."
`

// runInit writes starter config, registry and keyring files into the
// standard config directory, refusing to overwrite existing files.
func runInit() error {
	configPath := getConfigPath()
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			dataDir = "data"
		} else {
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
	}
	dbPath := filepath.Join(dataDir, "conclave", "gateway.db")
	registryPath := filepath.Join(configDir, "registry.toml")
	keyringPath := filepath.Join(configDir, "keyring.toml")

	files := []struct {
		path    string
		content string
	}{
		{configPath, fmt.Sprintf(starterConfig, dbPath, registryPath, keyringPath)},
		{registryPath, starterRegistry},
		{keyringPath, starterKeyring},
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Printf("exists, skipping: %s\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0600); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Printf("wrote %s\n", f.path)
	}

	fmt.Println()
	fmt.Println("Set CONCLAVE_JWT_SECRET and run: conclave-gateway serve")
	return nil
}
