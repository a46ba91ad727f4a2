// ABOUTME: Proxy server that fronts an upstream gateway with the passthrough/logging proxy
// ABOUTME: Serves the relay, the event log drain, health and optional metrics on one listener

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/cmf-gateway/internal/config"
	"github.com/2389/cmf-gateway/internal/metrics"
	"github.com/2389/cmf-gateway/internal/proxy"
)

// ProxyServer runs the logging proxy as its own HTTP server.
type ProxyServer struct {
	config     *config.Config
	proxy      *proxy.Proxy
	metrics    *metrics.Proxy
	httpServer *http.Server
	logger     *slog.Logger
}

// NewProxy creates a proxy server. Event lines are rendered to console; a nil
// console disables rendering.
func NewProxy(cfg *config.Config, logger *slog.Logger, console io.Writer) (*ProxyServer, error) {
	ps := &ProxyServer{
		config: cfg,
		logger: logger.With("component", "proxy"),
	}
	if cfg.Metrics.Enabled {
		ps.metrics = metrics.NewProxy()
	}

	var renderer *proxy.Console
	if console != nil {
		renderer = proxy.NewConsole(console, cfg.Proxy.LogBodies)
	}

	p, err := proxy.New(proxy.Config{
		Upstream:        cfg.Proxy.Upstream,
		Path:            cfg.Proxy.MCPPath,
		Timeout:         cfg.Proxy.Timeout,
		DerivePhase:     cfg.Proxy.DerivePhase,
		LogBodies:       cfg.Proxy.LogBodies,
		MaxBody:         cfg.Proxy.MaxBody,
		MaxRequestBytes: cfg.Server.MaxBodyBytes,
		Logger:          ps.logger,
		Metrics:         ps.metrics,
		Console:         renderer,
	})
	if err != nil {
		return nil, fmt.Errorf("creating proxy: %w", err)
	}
	ps.proxy = p

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	p.RegisterRoutes(mux)
	if ps.metrics != nil {
		mux.Handle(cfg.Metrics.Path, ps.metrics.Handler())
	}

	ps.httpServer = &http.Server{
		Addr:              cfg.Proxy.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ps, nil
}

// Handler returns the proxy's HTTP routes.
func (p *ProxyServer) Handler() http.Handler {
	return p.httpServer.Handler
}

// Events exposes the proxy's telemetry log.
func (p *ProxyServer) Events() *proxy.EventLog {
	return p.proxy.Events()
}

// Run listens on proxy.listen_addr and blocks until the context is canceled.
func (p *ProxyServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.config.Proxy.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on proxy address: %w", err)
	}
	return p.Serve(ctx, ln)
}

// Serve runs the proxy on an existing listener until the context is canceled.
func (p *ProxyServer) Serve(ctx context.Context, ln net.Listener) error {
	p.logger.Info("starting proxy",
		"upstream", p.config.Proxy.Upstream,
		"mcp_path", p.proxy.Path(),
		"timeout", p.config.Proxy.Timeout,
		"log_bodies", p.config.Proxy.LogBodies,
		"max_body", p.config.Proxy.MaxBody,
	)
	return runServer(ctx, "proxy server", p.httpServer, ln, p.logger, p.Shutdown)
}

// Shutdown gracefully stops the proxy server.
func (p *ProxyServer) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down proxy", "undrained_events", p.proxy.Events().Len())
	if err := p.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
