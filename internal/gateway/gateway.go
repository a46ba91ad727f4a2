// ABOUTME: Gateway orchestrator that wires the store, tool packs and MCP endpoint into one HTTP server
// ABOUTME: Manages the health and metrics endpoints and the server lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/cmf-gateway/internal/builtins"
	"github.com/2389/cmf-gateway/internal/config"
	"github.com/2389/cmf-gateway/internal/mcp"
	"github.com/2389/cmf-gateway/internal/metrics"
	"github.com/2389/cmf-gateway/internal/packs"
	"github.com/2389/cmf-gateway/internal/store"
)

// Default handshake identities per variant.
const (
	openFinanceServerName    = "mcp-open-finance"
	openFinanceServerVersion = "0.6.0"
	astroServerName          = "mcp-astro"
	astroServerVersion       = "0.2.0"
)

// Gateway serves the MCP endpoint for one variant.
type Gateway struct {
	config     *config.Config
	store      store.Store
	httpServer *http.Server
	logger     *slog.Logger

	// packRegistry holds the variant's tool catalog
	packRegistry *packs.Registry

	// packRouter dispatches tools/call by exact name
	packRouter *packs.Router

	// mcpServer handles JSON-RPC envelopes
	mcpServer *mcp.Server

	// metrics is nil unless metrics.enabled
	metrics *metrics.Gateway
}

// handshakeFor resolves the initialize identity for the configured variant.
func handshakeFor(cfg config.GatewayConfig) mcp.Handshake {
	var hs mcp.Handshake
	switch cfg.Variant {
	case config.VariantAstro:
		hs = mcp.Handshake{
			ServerName:          astroServerName,
			ServerVersion:       astroServerVersion,
			EchoProtocolVersion: true,
		}
	default:
		hs = mcp.Handshake{
			ServerName:      openFinanceServerName,
			ServerVersion:   openFinanceServerVersion,
			ProtocolVersion: cfg.ProtocolVersion,
		}
	}
	if cfg.ServerName != "" {
		hs.ServerName = cfg.ServerName
	}
	if cfg.ServerVersion != "" {
		hs.ServerVersion = cfg.ServerVersion
	}
	return hs
}

// registerBuiltinPacks registers the variant's pack with the registry.
func registerBuiltinPacks(registry *packs.Registry, variant string, s store.Store) error {
	switch variant {
	case config.VariantAstro:
		if err := registry.RegisterBuiltinPack(builtins.AstroPack()); err != nil {
			return fmt.Errorf("registering astro pack: %w", err)
		}
	default:
		if err := registry.RegisterBuiltinPack(builtins.FinancePack(s)); err != nil {
			return fmt.Errorf("registering finance pack: %w", err)
		}
	}
	return nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.Open(context.Background(), cfg.Store.Driver, store.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	packRegistry := packs.NewRegistry(logger.With("component", "pack-registry"))
	packRouter := packs.NewRouter(packs.RouterConfig{
		Registry: packRegistry,
		Logger:   logger.With("component", "pack-router"),
	})
	if err := registerBuiltinPacks(packRegistry, cfg.Gateway.Variant, s); err != nil {
		_ = s.Close()
		return nil, err
	}

	gw := &Gateway{
		config:       cfg,
		store:        s,
		logger:       logger.With("component", "gateway"),
		packRegistry: packRegistry,
		packRouter:   packRouter,
	}
	if cfg.Metrics.Enabled {
		gw.metrics = metrics.NewGateway()
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:     packRegistry,
		Router:       packRouter,
		Logger:       logger.With("component", "mcp"),
		Metrics:      gw.metrics,
		Handshake:    handshakeFor(cfg.Gateway),
		Path:         cfg.Server.MCPPath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		LogTruncate:  cfg.Logging.Truncate,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	gw.mcpServer = mcpServer

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	gw.mcpServer.RegisterRoutes(mux)
	if gw.metrics != nil {
		mux.Handle(cfg.Metrics.Path, gw.metrics.Handler())
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Tools lists the advertised tool names in catalog order.
func (g *Gateway) Tools() []string {
	defs := g.packRegistry.ListTools()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Run listens on server.http_addr and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		_ = g.store.Close()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the gateway on an existing listener until the context is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	g.logger.Info("starting gateway",
		"variant", g.config.Gateway.Variant,
		"store", g.config.Store.Driver,
		"tools", g.packRegistry.Len(),
		"mcp_path", g.mcpServer.Path(),
	)
	return runServer(ctx, "HTTP server", g.httpServer, ln, g.logger, g.Shutdown)
}

// Shutdown gracefully stops the HTTP server and releases the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
