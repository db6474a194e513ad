package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calstats/internal/config"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd, upstreamFlags)
	addConfigFlags(cmd, serveFlags)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfig_EnvFallback(t *testing.T) {
	cmd := newFlagCmd(t)

	cfg := loadConfig(cmd, envMap(map[string]string{
		config.EnvClientID:     "env-client",
		config.EnvClientSecret: "env-secret",
		config.EnvTenantID:     "env-tenant",
		config.EnvTargetUser:   "env@contoso.com",
		config.EnvAPIKey:       "env-key",
		config.EnvHTTPAddr:     ":9999",
	}))

	assert.Equal(t, "env-client", cfg.Identity.ClientID)
	assert.Equal(t, "env@contoso.com", cfg.Graph.TargetUser)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, config.DefaultGraphBaseURL, cfg.Graph.BaseURL)
	assert.True(t, cfg.Access.RequireKeyForProfile)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FlagWins(t *testing.T) {
	cmd := newFlagCmd(t,
		"--client-id", "flag-client",
		"--target-user", "flag@contoso.com",
		"--graph-scopes", "api://a/.default, api://b/.default",
		"--require-key-for-profile=false",
		"--upstream-timeout", "5s",
		"--graph-rate-limit", "2.5",
		"--graph-max-pages", "7",
		"--metrics-enabled=false",
	)

	cfg := loadConfig(cmd, envMap(map[string]string{
		config.EnvClientID:             "env-client",
		config.EnvTargetUser:           "env@contoso.com",
		config.EnvRequireKeyForProfile: "true",
		config.EnvUpstreamTimeout:      "60s",
		config.EnvClientSecret:         "env-secret",
	}))

	assert.Equal(t, "flag-client", cfg.Identity.ClientID)
	assert.Equal(t, "env-secret", cfg.Identity.ClientSecret)
	assert.Equal(t, "flag@contoso.com", cfg.Graph.TargetUser)
	assert.Equal(t, []string{"api://a/.default", "api://b/.default"}, cfg.Identity.Scopes)
	assert.False(t, cfg.Access.RequireKeyForProfile)
	assert.Equal(t, 5*time.Second, cfg.Graph.Timeout)
	assert.InDelta(t, 2.5, cfg.Graph.RateLimit, 1e-9)
	assert.Equal(t, 7, cfg.Graph.MaxPages)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_UnsetFlagDefaultsDoNotShadowEnv(t *testing.T) {
	cmd := newFlagCmd(t)

	cfg := loadConfig(cmd, envMap(map[string]string{
		config.EnvGraphBaseURL:  "http://localhost:8081/v1.0",
		config.EnvGraphMaxPages: "3",
	}))

	assert.Equal(t, "http://localhost:8081/v1.0", cfg.Graph.BaseURL)
	assert.Equal(t, 3, cfg.Graph.MaxPages)
}

func TestLoadConfig_BadFlagValueFailsValidation(t *testing.T) {
	cmd := newFlagCmd(t, "--upstream-timeout", "soon")

	cfg := loadConfig(cmd, envMap(map[string]string{
		config.EnvClientID:        "env-client",
		config.EnvClientSecret:    "env-secret",
		config.EnvTenantID:        "env-tenant",
		config.EnvTargetUser:      "env@contoso.com",
		config.EnvUpstreamTimeout: "60s",
	}))

	err := cfg.ValidateUpstream()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `UPSTREAM_TIMEOUT: "soon" is not a valid duration`)
}

func TestConfigFlags_UniqueAndDocumented(t *testing.T) {
	seenNames := make(map[string]bool)
	seenEnv := make(map[string]bool)
	for _, group := range [][]configFlag{upstreamFlags, serveFlags} {
		for _, f := range group {
			assert.False(t, seenNames[f.name], "duplicate flag %s", f.name)
			assert.False(t, seenEnv[f.env], "duplicate env %s", f.env)
			seenNames[f.name] = true
			seenEnv[f.env] = true
		}
	}

	cmd := newFlagCmd(t)
	flag := cmd.Flags().Lookup("api-key")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, config.EnvAPIKey)
}
