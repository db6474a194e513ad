package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/calstats/internal/config"
)

// configFlag binds a command-line flag to the environment variable it
// overrides.
type configFlag struct {
	name   string
	env    string
	usage  string
	define func(fs *pflag.FlagSet, name, usage string)
}

func stringFlag(def string) func(fs *pflag.FlagSet, name, usage string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.String(name, def, usage) }
}

func boolFlag(def bool) func(fs *pflag.FlagSet, name, usage string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.Bool(name, def, usage) }
}

func intFlag(def int) func(fs *pflag.FlagSet, name, usage string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.Int(name, def, usage) }
}

func floatFlag(def float64) func(fs *pflag.FlagSet, name, usage string) {
	return func(fs *pflag.FlagSet, name, usage string) { fs.Float64(name, def, usage) }
}

// upstreamFlags configure the identity provider and Graph. Every command
// that reads the calendar needs them.
var upstreamFlags = []configFlag{
	{name: "client-id", env: config.EnvClientID, usage: "Application (client) ID of the app registration", define: stringFlag("")},
	{name: "client-secret", env: config.EnvClientSecret, usage: "Client secret of the app registration", define: stringFlag("")},
	{name: "tenant-id", env: config.EnvTenantID, usage: "Directory (tenant) ID", define: stringFlag("")},
	{name: "authority-url", env: config.EnvAuthorityURL, usage: "Identity provider base URL", define: stringFlag(config.DefaultAuthorityURL)},
	{name: "graph-scopes", env: config.EnvScopes, usage: "Comma-separated token scopes", define: stringFlag(config.DefaultGraphScope)},
	{name: "graph-base-url", env: config.EnvGraphBaseURL, usage: "Microsoft Graph base URL", define: stringFlag(config.DefaultGraphBaseURL)},
	{name: "target-user", env: config.EnvTargetUser, usage: "Mailbox (UPN or object ID) whose calendar is read", define: stringFlag("")},
	{name: "token-expiry-margin", env: config.EnvTokenExpiryMargin, usage: "Refresh tokens this long before they expire", define: stringFlag(config.DefaultTokenExpiryMargin.String())},
	{name: "upstream-timeout", env: config.EnvUpstreamTimeout, usage: "Timeout for token and Graph requests", define: stringFlag(config.DefaultUpstreamTimeout.String())},
	{name: "graph-rate-limit", env: config.EnvGraphRateLimit, usage: "Graph requests per second (0 disables client-side limiting)", define: floatFlag(config.DefaultGraphRateLimit)},
	{name: "graph-rate-burst", env: config.EnvGraphRateBurst, usage: "Graph request burst size", define: intFlag(config.DefaultGraphRateBurst)},
	{name: "graph-max-pages", env: config.EnvGraphMaxPages, usage: "Maximum calendarView pages read for one statistics request", define: intFlag(config.DefaultGraphMaxPages)},
}

// serveFlags configure the HTTP API and the metrics server.
var serveFlags = []configFlag{
	{name: "api-key", env: config.EnvAPIKey, usage: "Shared secret expected in the x-api-key header", define: stringFlag("")},
	{name: "require-key-for-profile", env: config.EnvRequireKeyForProfile, usage: "Require the API key for GET /profile", define: boolFlag(true)},
	{name: "http-addr", env: config.EnvHTTPAddr, usage: "HTTP server address", define: stringFlag(config.DefaultHTTPAddr)},
	{name: "metrics-enabled", env: config.EnvMetricsEnabled, usage: "Enable the metrics server on a dedicated port", define: boolFlag(true)},
	{name: "metrics-addr", env: config.EnvMetricsAddr, usage: "Metrics server address", define: stringFlag(config.DefaultMetricsAddr)},
}

// addConfigFlags registers flags on cmd. Each flag can also be set through
// its environment variable.
func addConfigFlags(cmd *cobra.Command, flags []configFlag) {
	for _, f := range flags {
		f.define(cmd.Flags(), f.name, f.usage+". Can also use "+f.env+" env var.")
	}
}

// loadConfig builds the configuration for cmd. An explicitly set flag wins
// over its environment variable; unset flags fall back to the environment
// and then to the defaults.
func loadConfig(cmd *cobra.Command, getenv func(string) string) config.Config {
	byEnv := make(map[string]string)
	for _, group := range [][]configFlag{upstreamFlags, serveFlags} {
		for _, f := range group {
			byEnv[f.env] = f.name
		}
	}

	return config.LoadWithLookup(func(key string) string {
		if name, ok := byEnv[key]; ok && cmd.Flags().Changed(name) {
			return strings.TrimSpace(cmd.Flags().Lookup(name).Value.String())
		}
		return getenv(key)
	})
}
