// ABOUTME: Entry point for cmf-gateway, the mock MCP gateway and its logging proxy
// ABOUTME: Subcommands run either server, both together, or talk to a running one

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/cmf-gateway/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
                 __                      _
  ___ _ __ ___  / _|       __ _  __ _| |_ _____      ____ _ _   _
 / __| '_ ' _ \| |_ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| (__| | | | | |  _|_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \___|_| |_| |_|_|        \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                          |___/                             |___/
`

var errUsage = errors.New("usage")

// getConfigPath returns the path to the gateway config file.
// Priority: CMF_CONFIG env var > XDG_CONFIG_HOME/cmf/gateway.yaml > ~/.config/cmf/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CMF_CONFIG"); envPath != "" {
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

	return filepath.Join(configDir, "cmf", "gateway.yaml")
}

// loadConfig reads the config file with environment overrides applied.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func usage() {
	fmt.Println("Usage: cmf-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                              Start the MCP gateway")
	fmt.Println("  proxy                              Start the logging proxy")
	fmt.Println("  dev                                Start gateway and proxy together")
	fmt.Println("  health [--proxy]                   Check gateway (or proxy) health")
	fmt.Println("  proxy-log [--json]                 Drain and print the proxy event log")
	fmt.Println("  probe [--url U] [--tool T --args JSON]")
	fmt.Println("                                     Handshake, list tools and optionally call one")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "proxy":
		err = runProxy(ctx)
	case "dev":
		err = runDev(ctx)
	case "health":
		err = runHealth(ctx, args)
	case "proxy-log":
		err = runProxyLog(ctx, args)
	case "probe":
		err = runProbe(ctx, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printBanner writes the banner and version to stdout.
func printBanner() {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)
}

// printInfo writes one startup line.
func printInfo(label, value string) {
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("%-10s %s\n", label+":", value)
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)
	return logger
}
