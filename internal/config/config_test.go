package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func validEnv() map[string]string {
	return map[string]string{
		EnvClientID:     "client-id",
		EnvClientSecret: "client-secret",
		EnvTenantID:     "tenant-id",
		EnvTargetUser:   "jane@example.com",
		EnvAPIKey:       "secret-key",
	}
}

func TestLoadWithLookup_Defaults(t *testing.T) {
	cfg := LoadWithLookup(envMap(validEnv()))

	assert.Equal(t, DefaultAuthorityURL, cfg.Identity.AuthorityURL)
	assert.Equal(t, []string{DefaultGraphScope}, cfg.Identity.Scopes)
	assert.Equal(t, DefaultTokenExpiryMargin, cfg.Identity.ExpiryMargin)
	assert.Equal(t, DefaultGraphBaseURL, cfg.Graph.BaseURL)
	assert.Equal(t, DefaultUpstreamTimeout, cfg.Graph.Timeout)
	assert.Equal(t, DefaultGraphRateLimit, cfg.Graph.RateLimit)
	assert.Equal(t, DefaultGraphRateBurst, cfg.Graph.RateBurst)
	assert.Equal(t, DefaultGraphMaxPages, cfg.Graph.MaxPages)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.True(t, cfg.Access.RequireKeyForProfile)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithLookup_Overrides(t *testing.T) {
	env := validEnv()
	env[EnvAuthorityURL] = "https://login.example.com/"
	env[EnvScopes] = "scope-a, scope-b"
	env[EnvGraphBaseURL] = "http://localhost:9999/v1.0/"
	env[EnvRequireKeyForProfile] = "false"
	env[EnvTokenExpiryMargin] = "90"
	env[EnvUpstreamTimeout] = "5s"
	env[EnvGraphRateLimit] = "0"
	env[EnvGraphMaxPages] = "3"
	env[EnvMetricsEnabled] = "false"

	cfg := LoadWithLookup(envMap(env))

	assert.Equal(t, "https://login.example.com", cfg.Identity.AuthorityURL)
	assert.Equal(t, []string{"scope-a", "scope-b"}, cfg.Identity.Scopes)
	assert.Equal(t, "http://localhost:9999/v1.0", cfg.Graph.BaseURL)
	assert.False(t, cfg.Access.RequireKeyForProfile)
	assert.Equal(t, 90*time.Second, cfg.Identity.ExpiryMargin)
	assert.Equal(t, 5*time.Second, cfg.Graph.Timeout)
	assert.Zero(t, cfg.Graph.RateLimit)
	assert.Equal(t, 3, cfg.Graph.MaxPages)
	assert.False(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithLookup_UnparseableValuesFailValidation(t *testing.T) {
	env := validEnv()
	env[EnvUpstreamTimeout] = "soon"
	env[EnvRequireKeyForProfile] = "maybe"
	env[EnvGraphRateLimit] = "fast"
	env[EnvGraphMaxPages] = "many"

	cfg := LoadWithLookup(envMap(env))

	// The defaults stay in place so the remaining checks still make sense.
	assert.Equal(t, DefaultUpstreamTimeout, cfg.Graph.Timeout)
	assert.True(t, cfg.Access.RequireKeyForProfile)

	for _, validate := range []func() error{cfg.Validate, cfg.ValidateUpstream} {
		err := validate()
		require.Error(t, err)

		var cerr *ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Empty(t, cerr.Missing)
		assert.ElementsMatch(t, []string{
			`UPSTREAM_TIMEOUT: "soon" is not a valid duration`,
			`REQUIRE_KEY_FOR_PROFILE: "maybe" is not a valid boolean`,
			`GRAPH_RATE_LIMIT: "fast" is not a valid number`,
			`GRAPH_MAX_PAGES: "many" is not a valid integer`,
		}, cerr.Invalid)
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := LoadWithLookup(envMap(map[string]string{}))

	err := cfg.Validate()
	require.Error(t, err)

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.ElementsMatch(t, []string{
		EnvClientID, EnvClientSecret, EnvTenantID, EnvTargetUser, EnvAPIKey,
	}, cerr.Missing)
	assert.Contains(t, err.Error(), "missing required configuration")
	assert.Contains(t, err.Error(), EnvClientSecret)
}

func TestValidate_WhitespaceAPIKeyIsMissing(t *testing.T) {
	cfg := LoadWithLookup(envMap(validEnv()))
	cfg.Access.APIKey = "   "

	var cerr *ConfigError
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, []string{EnvAPIKey}, cerr.Missing)
}

func TestValidateUpstream_IgnoresAPIKey(t *testing.T) {
	env := validEnv()
	delete(env, EnvAPIKey)
	cfg := LoadWithLookup(envMap(env))

	require.NoError(t, cfg.ValidateUpstream())

	var cerr *ConfigError
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, []string{EnvAPIKey}, cerr.Missing)

	cfg.Graph.TargetUser = ""
	require.ErrorAs(t, cfg.ValidateUpstream(), &cerr)
	assert.Equal(t, []string{EnvTargetUser}, cerr.Missing)
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{
			name:   "relative authority",
			mutate: func(c *Config) { c.Identity.AuthorityURL = "login.microsoftonline.com" },
			want:   EnvAuthorityURL,
		},
		{
			name:   "relative graph base",
			mutate: func(c *Config) { c.Graph.BaseURL = "/v1.0" },
			want:   EnvGraphBaseURL,
		},
		{
			name:   "negative margin",
			mutate: func(c *Config) { c.Identity.ExpiryMargin = -time.Second },
			want:   EnvTokenExpiryMargin,
		},
		{
			name:   "zero timeout",
			mutate: func(c *Config) { c.Graph.Timeout = 0 },
			want:   EnvUpstreamTimeout,
		},
		{
			name:   "zero burst with limit",
			mutate: func(c *Config) { c.Graph.RateBurst = 0 },
			want:   EnvGraphRateBurst,
		},
		{
			name:   "zero pages",
			mutate: func(c *Config) { c.Graph.MaxPages = 0 },
			want:   EnvGraphMaxPages,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadWithLookup(envMap(validEnv()))
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTokenURL(t *testing.T) {
	c := IdentityConfig{AuthorityURL: "https://login.microsoftonline.com/", TenantID: "contoso"}
	assert.Equal(t, "https://login.microsoftonline.com/contoso/oauth2/v2.0/token", c.TokenURL())
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single value", input: "scope-a", expected: []string{"scope-a"}},
		{name: "multiple values", input: "scope-a,scope-b", expected: []string{"scope-a", "scope-b"}},
		{name: "spaces around comma", input: "scope-a, scope-b", expected: []string{"scope-a", "scope-b"}},
		{name: "space separated", input: "scope-a scope-b", expected: []string{"scope-a", "scope-b"}},
		{name: "trailing comma", input: "scope-a,scope-b,", expected: []string{"scope-a", "scope-b"}},
		{name: "consecutive commas", input: "scope-a,,scope-b", expected: []string{"scope-a", "scope-b"}},
		{name: "only separators", input: ",  , , ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseList(tt.input))
		})
	}
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Missing: []string{"A"}, Invalid: []string{"B: bad"}}
	assert.Equal(t, "missing required configuration: A; invalid configuration: B: bad", err.Error())

	assert.Equal(t, "invalid configuration", (&ConfigError{}).Error())
}
