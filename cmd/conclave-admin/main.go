// ABOUTME: Operator CLI for conclave-gateway: mint trust tokens, query the audit
// ABOUTME: log, and check gateway health over HTTP.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/conclave-mesh/conclave-gateway/internal/auth"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: conclave-admin <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  token --identity ID --trust LEVEL [--ttl 24h]   Mint a trust token")
		fmt.Println("  audit [--gateway URL] [--identity ID] [--capability NAME] [--limit N]")
		fmt.Println("  health [--gateway URL]")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  CONCLAVE_JWT_SECRET   shared secret for token minting")
		fmt.Println("  CONCLAVE_ADMIN_TOKEN  bearer token for audit queries")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken()
	case "audit":
		err = runAudit(ctx)
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

func runToken() error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	identity := fs.String("identity", "", "identity claim (did:mesh:...)")
	level := fs.String("trust", "basic", "trust level: basic, verified, enterprise")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(os.Args[2:])

	if *identity == "" {
		return fmt.Errorf("--identity is required")
	}
	parsed, ok := trust.Parse(*level)
	if !ok {
		return fmt.Errorf("unknown trust level %q", *level)
	}

	secret := os.Getenv("CONCLAVE_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("CONCLAVE_JWT_SECRET is not set")
	}

	verifier, err := auth.NewJWTVerifier([]byte(secret))
	if err != nil {
		return err
	}

	token, err := verifier.Generate(*identity, parsed, *ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	gray.Printf("identity=%s trust=%s ttl=%s\n", *identity, parsed, *ttl)
	fmt.Println(token)
	return nil
}

func runAudit(ctx context.Context) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	gatewayURL := fs.String("gateway", "http://127.0.0.1:8080", "gateway base URL")
	identity := fs.String("identity", "", "filter by identity")
	capName := fs.String("capability", "", "filter by capability")
	kind := fs.String("kind", "", "filter by record kind")
	limit := fs.Int("limit", 0, "max records")
	_ = fs.Parse(os.Args[2:])

	adminToken := os.Getenv("CONCLAVE_ADMIN_TOKEN")
	if adminToken == "" {
		return fmt.Errorf("CONCLAVE_ADMIN_TOKEN is not set (mint one with: conclave-admin token --trust enterprise)")
	}

	q := url.Values{}
	if *identity != "" {
		q.Set("identity", *identity)
	}
	if *capName != "" {
		q.Set("capability", *capName)
	}
	if *kind != "" {
		q.Set("kind", *kind)
	}
	if *limit > 0 {
		q.Set("limit", fmt.Sprint(*limit))
	}

	reqURL := *gatewayURL + "/v1/audit"
	if encoded := q.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("audit query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audit query failed: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Records []struct {
			ID         string    `json:"id"`
			Kind       string    `json:"kind"`
			Identity   string    `json:"identity"`
			Trust      string    `json:"trust"`
			Capability string    `json:"capability"`
			Timestamp  time.Time `json:"timestamp"`
		} `json:"records"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)
	for _, r := range payload.Records {
		gray.Printf("%s  ", r.Timestamp.Format(time.RFC3339))
		if r.Kind == "signature_failure" {
			yellow.Printf("%-18s", r.Kind)
		} else {
			fmt.Printf("%-18s", r.Kind)
		}
		fmt.Printf("  %-12s %-24s %s\n", r.Trust, r.Identity, r.Capability)
	}
	gray.Printf("%d records\n", len(payload.Records))
	return nil
}

func runHealth(ctx context.Context) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	gatewayURL := fs.String("gateway", "http://127.0.0.1:8080", "gateway base URL")
	_ = fs.Parse(os.Args[2:])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *gatewayURL+"/health", nil)
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

	fmt.Println(string(body))
	return nil
}
