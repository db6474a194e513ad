// Package resources provides MCP resources for the calendar service.
// Resources are read-only data sources that MCP clients can fetch without
// calling a tool; calendar://profile exposes the mailbox's time zone and
// working hours.
package resources
