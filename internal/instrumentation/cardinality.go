package instrumentation

import (
	"strconv"
	"strings"
)

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// Always use these helpers when recording metrics with user identifiers or
// raw request paths.

// ExtractUserDomain extracts the domain part from a user principal name.
// This reduces cardinality by using the domain instead of the full mailbox.
//
// Example:
//
//	ExtractUserDomain("jane@contoso.com")  // "contoso.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(upn string) string {
	if upn == "" {
		return "unknown"
	}

	parts := strings.Split(upn, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// knownRoutes are the paths the public API serves. Anything else is folded
// into "other" so scanners cannot inflate the path label.
var knownRoutes = map[string]bool{
	"/profile":          true,
	"/calendar/view":    true,
	"/stats":            true,
	"/mcp":              true,
	"/healthz":          true,
	"/readyz":           true,
	"/healthz/detailed": true,
}

// NormalizeRoute maps a request path onto a bounded set of label values.
func NormalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// GraphStatus returns the status label for a Graph response code.
// A zero code means no response was received.
func GraphStatus(statusCode int) string {
	if statusCode == 0 {
		return StatusTransportError
	}
	return strconv.Itoa(statusCode)
}

// Graph operation names used for metrics and span names.
const (
	OperationMailboxSettings = "mailbox_settings"
	OperationCalendarView    = "calendar_view"
	OperationToken           = "token"
)
