// ABOUTME: Configuration loading and parsing for cmf-gateway and its logging proxy
// ABOUTME: Supports YAML or TOML files, ${VAR} expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Gateway variants select the handshake policy and the advertised tool pack.
const (
	VariantOpenFinance = "open-finance"
	VariantAstro       = "astro"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config represents the complete cmf-gateway configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Gateway GatewayConfig `yaml:"gateway" toml:"gateway"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Proxy   ProxyConfig   `yaml:"proxy" toml:"proxy"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the MCP gateway listener configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	MCPPath      string `yaml:"mcp_path" toml:"mcp_path"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// GatewayConfig holds the handshake and capability surface settings
type GatewayConfig struct {
	Variant         string `yaml:"variant" toml:"variant"`
	ProtocolVersion string `yaml:"protocol_version" toml:"protocol_version"`
	ServerName      string `yaml:"server_name" toml:"server_name"`
	ServerVersion   string `yaml:"server_version" toml:"server_version"`
}

// StoreConfig selects the mock domain store backend
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
}

// ProxyConfig holds the passthrough/logging proxy configuration
type ProxyConfig struct {
	ListenAddr  string        `yaml:"listen_addr" toml:"listen_addr"`
	MCPPath     string        `yaml:"mcp_path" toml:"mcp_path"`
	Upstream    string        `yaml:"upstream" toml:"upstream"`
	Timeout     time.Duration `yaml:"-" toml:"-"`
	Verbose     bool          `yaml:"verbose" toml:"verbose"`
	LogBodies   bool          `yaml:"log_bodies" toml:"log_bodies"`
	MaxBody     int           `yaml:"max_body" toml:"max_body"`
	DerivePhase bool          `yaml:"derive_phase" toml:"derive_phase"`

	// Raw string value for file unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" toml:"level"`
	Format   string `yaml:"format" toml:"format"`
	Truncate int    `yaml:"truncate" toml:"truncate"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is present.
// The gateway listens on 3211 and the proxy on 33211.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:     "localhost:3211",
			MCPPath:      "/mcp",
			MaxBodyBytes: 4 << 20,
		},
		Gateway: GatewayConfig{
			Variant:         VariantOpenFinance,
			ProtocolVersion: "2024-11-05",
		},
		Store: StoreConfig{
			Driver: DriverMemory,
		},
		Proxy: ProxyConfig{
			ListenAddr: "localhost:33211",
			MCPPath:    "/mcp",
			Upstream:   "http://localhost:3211/mcp",
			TimeoutRaw: "30s",
			Verbose:    true,
			MaxBody:    200,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Truncate: 500,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// Load reads a configuration file from the given path on top of Default().
// A missing file (or empty path) yields the defaults. Files ending in .toml
// are decoded as TOML, everything else as YAML. Environment variables in the
// format ${VAR_NAME} are expanded before decoding, then getenv overrides are
// applied. getenv may be nil, in which case no overrides are applied.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := decode(path, expandEnvVars(string(data)), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if getenv != nil {
		if err := cfg.ApplyEnv(getenv); err != nil {
			return nil, fmt.Errorf("applying environment: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path, content string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(content, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(content), cfg)
}

// envVarPattern matches ${VAR_NAME}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyEnv overrides file values with the MCP_* and LOG_* environment
// variables. Unset or empty variables leave the value alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if port := getenv("MCP_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("MCP_PORT %q: %w", port, err)
		}
		c.Server.HTTPAddr = net.JoinHostPort(hostOf(c.Server.HTTPAddr), port)
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := getenv("LOG_TRUNCATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOG_TRUNCATE %q: %w", v, err)
		}
		c.Logging.Truncate = n
	}

	// MCP_UPSTREAM wins over REAL_MCP_URL when both are set.
	if u := getenv("REAL_MCP_URL"); u != "" {
		c.Proxy.Upstream = u
	}
	if u := getenv("MCP_UPSTREAM"); u != "" {
		c.Proxy.Upstream = u
	}
	if listen := getenv("MCP_PROXY_LISTEN"); listen != "" {
		parsed, err := url.Parse(listen)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("MCP_PROXY_LISTEN %q: expected a URL like http://localhost:33211/mcp", listen)
		}
		c.Proxy.ListenAddr = parsed.Host
		if parsed.Path != "" {
			c.Proxy.MCPPath = parsed.Path
		}
	}
	if port := getenv("MCP_PROXY_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("MCP_PROXY_PORT %q: %w", port, err)
		}
		c.Proxy.ListenAddr = net.JoinHostPort(hostOf(c.Proxy.ListenAddr), port)
	}
	if v := getenv("MCP_PROXY_VERBOSE"); v != "" {
		c.Proxy.Verbose = v == "1"
	}
	if v := getenv("MCP_PROXY_LOG_BODIES"); v != "" {
		c.Proxy.LogBodies = v == "1"
	}
	if v := getenv("MCP_PROXY_MAX_BODY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCP_PROXY_MAX_BODY %q: %w", v, err)
		}
		c.Proxy.MaxBody = n
	}
	if v := getenv("MCP_PROXY_TIMEOUT"); v != "" {
		c.Proxy.TimeoutRaw = v
	}
	return nil
}

// hostOf returns the host part of addr, or "" when addr has no port.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return host
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if !strings.HasPrefix(c.Server.MCPPath, "/") {
		return fmt.Errorf("server.mcp_path must start with /")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	switch c.Gateway.Variant {
	case VariantOpenFinance:
		if c.Gateway.ProtocolVersion == "" {
			return fmt.Errorf("gateway.protocol_version is required for the %s variant", VariantOpenFinance)
		}
	case VariantAstro:
	default:
		return fmt.Errorf("gateway.variant must be %q or %q, got %q", VariantOpenFinance, VariantAstro, c.Gateway.Variant)
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Store.Driver)
	}

	if c.Proxy.ListenAddr == "" {
		return fmt.Errorf("proxy.listen_addr is required")
	}
	if !strings.HasPrefix(c.Proxy.MCPPath, "/") {
		return fmt.Errorf("proxy.mcp_path must start with /")
	}
	upstream, err := url.Parse(c.Proxy.Upstream)
	if err != nil || (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		return fmt.Errorf("proxy.upstream must be an http(s) URL, got %q", c.Proxy.Upstream)
	}
	if c.Proxy.Timeout <= 0 {
		return fmt.Errorf("proxy.timeout must be positive")
	}
	if c.Proxy.MaxBody < 0 {
		return fmt.Errorf("proxy.max_body must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Truncate < 0 {
		return fmt.Errorf("logging.truncate must not be negative")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Proxy.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Proxy.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing proxy.timeout %q: %w", cfg.Proxy.TimeoutRaw, err)
		}
		cfg.Proxy.Timeout = d
	}
	return nil
}

// MCPURL returns the gateway's MCP endpoint URL as seen from localhost.
func (c *Config) MCPURL() string {
	return "http://" + dialable(c.Server.HTTPAddr) + c.Server.MCPPath
}

// ProxyURL returns the proxy's base URL as seen from localhost.
func (c *Config) ProxyURL() string {
	return "http://" + dialable(c.Proxy.ListenAddr)
}

// GatewayURL returns the gateway's base URL as seen from localhost.
func (c *Config) GatewayURL() string {
	return "http://" + dialable(c.Server.HTTPAddr)
}

// dialable turns a listen address like ":3211" or "0.0.0.0:3211" into one a
// local client can dial.
func dialable(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
