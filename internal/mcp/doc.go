// Package mcp implements the Model Context Protocol JSON-RPC endpoint.
//
// # Protocol
//
// Each HTTP POST to the endpoint carries exactly one JSON-RPC 2.0 envelope
// and receives exactly one response object. There is no batching, no SSE and
// no session state. Supported methods:
//
//   - initialize - handshake, returns serverInfo and capabilities
//   - notifications/initialized - acknowledged with {"id":null,"result":{}}
//   - tools/list - the full tool catalog, in registration order
//   - tools/call - runs a tool, wrapping its JSON payload as text content
//
// # Errors
//
// Protocol failures are reported as JSON-RPC errors with HTTP status 200:
//
//	-32700  body is not JSON                    (id null)
//	-32600  envelope fails validation           (id echoed when string/number)
//	-32601  unknown method or unknown tool
//	-32000  tool execution failed or panicked   (no internal detail)
//
// Only non-POST requests are rejected at the HTTP level (405).
//
// # Handshake
//
// Handshake selects what initialize reports. A gateway either advertises a
// fixed protocol version or echoes whatever the caller sent:
//
//	mcp.Handshake{ServerName: "mcp-open-finance", ServerVersion: "0.6.0", ProtocolVersion: "2024-11-05"}
//	mcp.Handshake{ServerName: "mcp-astro", ServerVersion: "0.2.0", EchoProtocolVersion: true}
//
// # Usage
//
//	server, err := mcp.NewServer(mcp.Config{
//	    Registry:  registry,
//	    Router:    router,
//	    Logger:    logger,
//	    Handshake: handshake,
//	})
//	server.RegisterRoutes(mux)
package mcp
