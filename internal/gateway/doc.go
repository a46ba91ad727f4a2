// Package gateway assembles the cmf-gateway processes.
//
// # Gateway
//
// New builds everything the MCP endpoint needs from a config.Config:
//
//   - the mock domain store (memory or sqlite driver)
//   - a pack registry and router holding the variant's tools
//   - the mcp.Server with the variant's handshake
//   - /health and, when enabled, the Prometheus endpoint
//
// The variant decides the capability surface. "open-finance" advertises the
// cmf.* tools and a fixed protocol version; "astro" advertises the astro.*
// tools and echoes the caller's protocol version.
//
// # Proxy
//
// NewProxy builds the passthrough/logging proxy server. It relays the MCP
// path to proxy.upstream, serves GET /proxy-log to drain telemetry and shares
// the /health and metrics conventions with the gateway.
//
// # Lifecycle
//
// Run and Serve block until the context is canceled, then shut down with a
// fresh ShutdownTimeout deadline:
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
package gateway
