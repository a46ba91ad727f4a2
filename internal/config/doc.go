// Package config handles configuration loading for cmf-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion, then overridden by a small set of environment variables. A
// missing file is not an error: Default() values are used.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CMF_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/cmf/gateway.yaml (or ~/.config/cmf/gateway.yaml)
//
// Files ending in .toml are decoded with BurntSushi/toml, all others as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	proxy:
//	  upstream: "${UPSTREAM_URL}"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
// Applied after the file, through the getenv function passed to Load:
//
//	MCP_PORT              server.http_addr port
//	LOG_LEVEL             logging.level
//	LOG_TRUNCATE          logging.truncate
//	REAL_MCP_URL          proxy.upstream
//	MCP_UPSTREAM          proxy.upstream (wins over REAL_MCP_URL)
//	MCP_PROXY_LISTEN      proxy.listen_addr and proxy.mcp_path, as a URL
//	MCP_PROXY_PORT        proxy.listen_addr port
//	MCP_PROXY_VERBOSE     proxy.verbose ("1" enables)
//	MCP_PROXY_LOG_BODIES  proxy.log_bodies ("1" enables)
//	MCP_PROXY_MAX_BODY    proxy.max_body
//	MCP_PROXY_TIMEOUT     proxy.timeout
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:3211"
//	  mcp_path: "/mcp"
//	  max_body_bytes: 4194304
//
//	gateway:
//	  variant: "open-finance"     # or "astro"
//	  protocol_version: "2024-11-05"
//	  server_name: ""             # defaults per variant
//	  server_version: ""
//
//	store:
//	  driver: "memory"            # or "sqlite"
//
//	proxy:
//	  listen_addr: "localhost:33211"
//	  mcp_path: "/mcp"
//	  upstream: "http://localhost:3211/mcp"
//	  timeout: "30s"
//	  verbose: true
//	  log_bodies: false
//	  max_body: 200
//	  derive_phase: false
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
//	  truncate: 500
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
package config
