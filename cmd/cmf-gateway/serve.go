// ABOUTME: serve, proxy and dev subcommands
// ABOUTME: dev runs the gateway and a proxy pointed at it under one errgroup

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/cmf-gateway/internal/config"
	"github.com/2389/cmf-gateway/internal/gateway"
)

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	printBanner()
	printGatewayInfo(cfg, configPath)
	fmt.Println()

	logger := newLogger(cfg)
	logger.Info("starting cmf-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"variant", cfg.Gateway.Variant,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

func runProxy(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	printBanner()
	printProxyInfo(cfg, configPath)

	logger := newLogger(cfg)
	ps, err := gateway.NewProxy(cfg, logger, os.Stdout)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	return ps.Run(ctx)
}

func runDev(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	// The proxy always fronts the local gateway in dev mode.
	cfg.Proxy.Upstream = cfg.MCPURL()

	printBanner()
	printGatewayInfo(cfg, configPath)
	printProxyInfo(cfg, "")

	logger := newLogger(cfg)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	ps, err := gateway.NewProxy(cfg, logger, os.Stdout)
	if err != nil {
		_ = gw.Shutdown(ctx)
		return fmt.Errorf("creating proxy: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error { return ps.Run(gctx) })
	return g.Wait()
}

func printGatewayInfo(cfg *config.Config, configPath string) {
	if configPath != "" {
		printInfo("Config", configPath)
	}
	printInfo("MCP", cfg.MCPURL())
	printInfo("Variant", cfg.Gateway.Variant)
	printInfo("Store", cfg.Store.Driver)
	if cfg.Metrics.Enabled {
		printInfo("Metrics", cfg.GatewayURL()+cfg.Metrics.Path)
	}
}

// printProxyInfo prints the proxy header and, when verbose, curl examples.
func printProxyInfo(cfg *config.Config, configPath string) {
	if configPath != "" {
		printInfo("Config", configPath)
	}
	listen := cfg.ProxyURL() + cfg.Proxy.MCPPath
	printInfo("Proxy", listen+"?phase=...")
	printInfo("Upstream", cfg.Proxy.Upstream)
	printInfo("Timeout", cfg.Proxy.Timeout.String())
	printInfo("Bodies", fmt.Sprintf("log_bodies=%t max_body=%d", cfg.Proxy.LogBodies, cfg.Proxy.MaxBody))
	fmt.Println()

	if !cfg.Proxy.Verbose {
		return
	}
	gray := color.New(color.FgHiBlack)
	gray.Println(strings.Join([]string{
		"Examples:",
		"  curl " + cfg.ProxyURL() + "/health",
		"  curl -s -X POST '" + listen + "?phase=test' \\",
		"    -H 'Content-Type: application/json' \\",
		`    -d '{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"curl","version":"0.0.1"},"protocolVersion":"2024-06-01"}}'`,
		"  curl " + cfg.ProxyURL() + "/proxy-log",
	}, "\n"))
	fmt.Println()
}
