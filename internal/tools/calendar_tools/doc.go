// Package calendar_tools exposes the calendar service as MCP tools.
//
// calendar_profile, calendar_view and calendar_stats mirror the /profile,
// /calendar/view and /stats HTTP routes. They read the single mailbox the
// server is configured for; there is no per-call account selection.
package calendar_tools
