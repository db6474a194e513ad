// Package logging provides structured logging utilities for calstats.
//
// It centralizes logging patterns so that every package logs with the same
// attribute names, using the standard library's slog package.
//
// # Usage Patterns
//
// Build the process logger once at start-up:
//
//	logger := logging.NewLogger(logging.FormatJSON, slog.LevelInfo, os.Stderr)
//
// Scope a logger and attach standard attributes:
//
//	logger = logging.WithComponent(logger, "calendar")
//	logger.Info("aggregated", logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - The target mailbox is logged as a hash (UserHash) or domain (Domain)
//   - Tokens are never logged directly; use SanitizeToken
//   - The API key is never logged
package logging
