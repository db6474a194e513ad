// Package server exposes the calendar service over HTTP.
//
// # Key Components
//
// ServerContext holds the dependencies shared by the HTTP handlers and the
// MCP tools: the calendar service, the target mailbox, the token cache status
// and the optional metrics and audit loggers.
//
// HTTPServer serves the public API:
//   - GET /profile: mailbox time zone and working hours
//   - GET /calendar/view: the raw calendarView page for [start, end)
//   - GET /stats: hours per category or free/busy status for [start, end)
//   - /mcp: the MCP streamable HTTP transport, when an MCP server is set
//
// Data routes sit behind AccessGate, which compares the x-api-key header
// with the configured key in constant time. /profile is gated only when
// HTTPServerConfig.RequireKeyForProfile is set.
//
// Errors from Microsoft Graph are relayed with Graph's status and body.
// Every other failure is answered with an ErrorResponse.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed, and
// MetricsServer serves Prometheus metrics on a separate listener.
package server
