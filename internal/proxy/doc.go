// Package proxy implements the passthrough/logging proxy that sits between an
// MCP client and the gateway.
//
// # Forwarding
//
// Each POST to the MCP path is forwarded byte for byte to the configured
// upstream. The upstream status and body are relayed verbatim, including
// JSON-RPC error envelopes. Connection failures, timeouts and non-JSON
// upstream bodies become HTTP 502 with a -32000 envelope that keeps the
// caller's id:
//
//	{"jsonrpc":"2.0","id":7,"error":{"code":-32000,"message":"Proxy error: ..."}}
//
// Request bodies that are not JSON are refused with HTTP 400 and are neither
// forwarded nor logged.
//
// # Telemetry
//
// Every forwarded call appends a LogEvent to an EventLog. The optional
// ?phase= query parameter tags the event and is never forwarded. GET
// /proxy-log returns {"ok":true,"events":[...]} and clears the log in the
// same step. The log is unbounded until drained.
//
// A Console renders each event as a colored line when the call starts and
// again when it finishes.
package proxy
