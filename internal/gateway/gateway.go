// ABOUTME: Gateway orchestrator: builds the registry, keyring, store, limiter and
// ABOUTME: protocol core from config, then runs the HTTP server until shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"tailscale.com/tsnet"

	"github.com/conclave-mesh/conclave-gateway/internal/audit"
	"github.com/conclave-mesh/conclave-gateway/internal/auth"
	"github.com/conclave-mesh/conclave-gateway/internal/builtins"
	"github.com/conclave-mesh/conclave-gateway/internal/capability"
	"github.com/conclave-mesh/conclave-gateway/internal/config"
	"github.com/conclave-mesh/conclave-gateway/internal/protocol"
	"github.com/conclave-mesh/conclave-gateway/internal/ratelimit"
	"github.com/conclave-mesh/conclave-gateway/internal/session"
	"github.com/conclave-mesh/conclave-gateway/internal/signature"
	"github.com/conclave-mesh/conclave-gateway/internal/store"
	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Gateway orchestrates the conclave-gateway server components.
type Gateway struct {
	config   *config.Config
	sessions *session.Manager
	store    store.Store
	core     *protocol.Core
	router   *protocol.Router
	verifier *auth.JWTVerifier

	// sharedLimiter is non-nil only for the redis backend; sessions then
	// share windows keyed by identity instead of owning their own.
	sharedLimiter ratelimit.Limiter

	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// serverID identifies this gateway instance, fresh per boot.
	serverID string
	version  string
}

// New creates a Gateway from configuration.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Gateway, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	keyring, err := loadKeyring(cfg)
	if err != nil {
		return nil, err
	}

	st, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	sink, err := initSink(cfg, st, logger)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
	} else {
		logger.Warn("bearer auth disabled - no jwt_secret configured")
	}

	gw := &Gateway{
		config:   cfg,
		sessions: session.NewManager(logger.With("component", "session-manager")),
		store:    st,
		verifier: verifier,
		logger:   logger.With("component", "gateway"),
		serverID: generateServerID(),
		version:  version,
	}

	if cfg.RateLimit.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		gw.sharedLimiter = ratelimit.NewRedis(client, cfg.RateLimit.RedisPrefix)
		logger.Info("shared rate-limit backend enabled", "redis_addr", cfg.RateLimit.RedisAddr)
	}

	core, err := protocol.NewCore(protocol.CoreConfig{
		Registry: registry,
		Executor: builtins.NewExecutor(st, logger),
		Verifier: signature.DualVerifier{
			Classical: signature.NewEd25519(keyring),
			Quantum:   signature.NewMLDSA65(keyring),
		},
		Sink:           sink,
		Logger:         logger,
		ServerID:       gw.serverID,
		ServerVersion:  version,
		TrustAfterRate: !cfg.Gating.TrustFirst(),
		InvokeTimeout:  cfg.Server.InvokeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating protocol core: %w", err)
	}
	gw.core = core
	gw.router = core.NewRouterFor(logger)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.buildRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// loadRegistry builds the capability registry from the configured TOML file,
// falling back to the builtin default pack.
func loadRegistry(cfg *config.Config) (*capability.Registry, error) {
	if cfg.Registry.Path != "" {
		r, err := capability.LoadFile(cfg.Registry.Path)
		if err != nil {
			return nil, fmt.Errorf("loading capability registry: %w", err)
		}
		return r, nil
	}
	return capability.New(builtins.Defaults())
}

// loadKeyring reads the signing keyring file. No file means an empty
// keyring: every signed invocation then fails verification, which is the
// fail-closed default.
func loadKeyring(cfg *config.Config) (*signature.Keyring, error) {
	if cfg.Keyring.Path == "" {
		return signature.NewKeyring(nil), nil
	}
	k, err := signature.LoadKeyring(cfg.Keyring.Path)
	if err != nil {
		return nil, fmt.Errorf("loading keyring: %w", err)
	}
	return k, nil
}

// initStore opens the SQLite store when a database path is configured.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("CONCLAVE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	if dbPath == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initSink selects the audit sink from config.
func initSink(cfg *config.Config, st store.Store, logger *slog.Logger) (audit.Sink, error) {
	switch cfg.Audit.Sink {
	case "sqlite":
		if st == nil {
			return nil, errors.New("sqlite audit sink requires database.path")
		}
		return st, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sink, err := audit.NewPostgresSink(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("initializing postgres audit sink: %w", err)
		}
		return sink, nil
	case "log":
		return audit.NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

// buildRoutes assembles the HTTP surface: health, the connect endpoint, and
// the bearer-guarded admin queries.
func (g *Gateway) buildRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)
	r.Get("/v1/connect", g.handleConnect)

	if g.verifier != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(g.verifier, trust.Enterprise))
			r.Get("/v1/audit", g.handleAuditList)
			r.Get("/v1/sessions", g.handleSessions)
		})
	}

	return r
}

// Run starts the gateway and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListener(ctx)
	}
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using the default
// when not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "conclave-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens there instead of on a
// local TCP port.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	if len(status.TailscaleIPs) > 0 {
		g.logger.Info("tailscale node ready", "hostname", tsCfg.Hostname, "tailscale_ip", status.TailscaleIPs[0].String())
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout. Uses
// context.Background() intentionally since the original context is already
// canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Handler exposes the HTTP surface for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// ServerID returns the per-boot server identity.
func (g *Gateway) ServerID() string {
	return g.serverID
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("conclave-gateway-%06d", time.Now().UnixNano()%1000000)
}
