// Package cmd implements the command-line interface for calstats.
//
// This package provides the following commands:
//   - serve: Start the HTTP API and MCP endpoint, or the MCP server on stdio
//   - stats: Print hours per category or status for a time range as JSON
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Every setting can be given as a flag or through its environment variable;
// an explicitly set flag wins.
package cmd
