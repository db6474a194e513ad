package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment variable names understood by Load.
const (
	EnvClientID             = "AZURE_CLIENT_ID"
	EnvClientSecret         = "AZURE_CLIENT_SECRET"
	EnvTenantID             = "AZURE_TENANT_ID"
	EnvAuthorityURL         = "AZURE_AUTHORITY_URL"
	EnvScopes               = "GRAPH_SCOPES"
	EnvGraphBaseURL         = "GRAPH_BASE_URL"
	EnvTargetUser           = "TARGET_USER"
	EnvAPIKey               = "API_KEY"
	EnvRequireKeyForProfile = "REQUIRE_KEY_FOR_PROFILE"
	EnvHTTPAddr             = "HTTP_ADDR"
	EnvMetricsEnabled       = "METRICS_ENABLED"
	EnvMetricsAddr          = "METRICS_ADDR"
	EnvTokenExpiryMargin    = "TOKEN_EXPIRY_MARGIN"
	EnvUpstreamTimeout      = "UPSTREAM_TIMEOUT"
	EnvGraphRateLimit       = "GRAPH_RATE_LIMIT"
	EnvGraphRateBurst       = "GRAPH_RATE_BURST"
	EnvGraphMaxPages        = "GRAPH_MAX_PAGES"
)

// Defaults applied when neither a flag nor an environment variable is set.
const (
	DefaultAuthorityURL      = "https://login.microsoftonline.com"
	DefaultGraphBaseURL      = "https://graph.microsoft.com/v1.0"
	DefaultGraphScope        = "https://graph.microsoft.com/.default"
	DefaultHTTPAddr          = ":8080"
	DefaultMetricsAddr       = ":9090"
	DefaultTokenExpiryMargin = 60 * time.Second
	DefaultUpstreamTimeout   = 30 * time.Second
	DefaultGraphRateLimit    = 10.0
	DefaultGraphRateBurst    = 15
	DefaultGraphMaxPages     = 50
)

// Config is the complete, validated service configuration.
type Config struct {
	Identity IdentityConfig
	Graph    GraphConfig
	Access   AccessConfig
	Metrics  MetricsConfig

	// HTTPAddr is the listen address of the public API.
	HTTPAddr string

	// unparsed lists values that could not be read; Validate reports them.
	unparsed []string
}

// IdentityConfig holds the client-credential grant settings.
type IdentityConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	AuthorityURL string
	Scopes       []string

	// ExpiryMargin is subtracted from a token's expiry before it is reused.
	ExpiryMargin time.Duration
}

// GraphConfig holds upstream calendar service settings.
type GraphConfig struct {
	BaseURL string

	// TargetUser is the mailbox (UPN or object id) whose calendar is read.
	TargetUser string

	// Timeout bounds every upstream and token request.
	Timeout time.Duration

	// RateLimit is the sustained request rate; zero disables client-side limiting.
	RateLimit float64
	RateBurst int

	// MaxPages bounds @odata.nextLink pagination for stats.
	MaxPages int
}

// AccessConfig controls the API-key access gate.
type AccessConfig struct {
	APIKey string

	// RequireKeyForProfile decides whether GET /profile sits behind the gate.
	// The data routes always require the key.
	RequireKeyForProfile bool
}

// MetricsConfig holds configuration for the dedicated metrics server.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load builds a Config from defaults and the process environment.
func Load() Config {
	return LoadWithLookup(os.Getenv)
}

// LoadWithLookup builds a Config from defaults and the given lookup function.
// Values that fail to parse keep their default and are reported by Validate
// along with anything required that is still missing.
func LoadWithLookup(getenv func(string) string) Config {
	p := &envParser{getenv: getenv}

	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	scopes := ParseList(getenv(EnvScopes))
	if len(scopes) == 0 {
		scopes = []string{DefaultGraphScope}
	}

	cfg := Config{
		Identity: IdentityConfig{
			ClientID:     get(EnvClientID, ""),
			ClientSecret: get(EnvClientSecret, ""),
			TenantID:     get(EnvTenantID, ""),
			AuthorityURL: strings.TrimRight(get(EnvAuthorityURL, DefaultAuthorityURL), "/"),
			Scopes:       scopes,
			ExpiryMargin: p.duration(EnvTokenExpiryMargin, DefaultTokenExpiryMargin),
		},
		Graph: GraphConfig{
			BaseURL:    strings.TrimRight(get(EnvGraphBaseURL, DefaultGraphBaseURL), "/"),
			TargetUser: get(EnvTargetUser, ""),
			Timeout:    p.duration(EnvUpstreamTimeout, DefaultUpstreamTimeout),
			RateLimit:  p.float(EnvGraphRateLimit, DefaultGraphRateLimit),
			RateBurst:  p.integer(EnvGraphRateBurst, DefaultGraphRateBurst),
			MaxPages:   p.integer(EnvGraphMaxPages, DefaultGraphMaxPages),
		},
		Access: AccessConfig{
			APIKey:               get(EnvAPIKey, ""),
			RequireKeyForProfile: p.boolean(EnvRequireKeyForProfile, true),
		},
		Metrics: MetricsConfig{
			Enabled: p.boolean(EnvMetricsEnabled, true),
			Addr:    get(EnvMetricsAddr, DefaultMetricsAddr),
		},
		HTTPAddr: get(EnvHTTPAddr, DefaultHTTPAddr),
	}
	cfg.unparsed = p.invalid
	return cfg
}

// Validate checks that every required value is present and well-formed.
// It returns a *ConfigError naming all offending settings at once.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateUpstream is Validate without the access gate settings, for modes
// that expose no HTTP API (stdio transport, one-shot CLI commands).
func (c *Config) ValidateUpstream() error {
	return c.validate(false)
}

func (c *Config) validate(withAccess bool) error {
	cerr := &ConfigError{Invalid: slices.Clone(c.unparsed)}

	required := []struct {
		name  string
		value string
	}{
		{EnvClientID, c.Identity.ClientID},
		{EnvClientSecret, c.Identity.ClientSecret},
		{EnvTenantID, c.Identity.TenantID},
		{EnvAuthorityURL, c.Identity.AuthorityURL},
		{EnvGraphBaseURL, c.Graph.BaseURL},
		{EnvTargetUser, c.Graph.TargetUser},
	}
	if withAccess {
		required = append(required, struct {
			name  string
			value string
		}{EnvAPIKey, c.Access.APIKey})
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			cerr.Missing = append(cerr.Missing, r.name)
		}
	}
	if len(c.Identity.Scopes) == 0 {
		cerr.Missing = append(cerr.Missing, EnvScopes)
	}

	for _, u := range []struct {
		name  string
		value string
	}{
		{EnvAuthorityURL, c.Identity.AuthorityURL},
		{EnvGraphBaseURL, c.Graph.BaseURL},
	} {
		if u.value == "" {
			continue
		}
		if parsed, err := url.Parse(u.value); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s: %q is not an absolute URL", u.name, u.value))
		}
	}

	if c.Identity.ExpiryMargin < 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s: must not be negative", EnvTokenExpiryMargin))
	}
	if c.Graph.Timeout <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s: must be positive", EnvUpstreamTimeout))
	}
	if c.Graph.RateLimit < 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s: must not be negative", EnvGraphRateLimit))
	}
	if c.Graph.RateLimit > 0 && c.Graph.RateBurst < 1 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s: must be at least 1 when rate limiting is enabled", EnvGraphRateBurst))
	}
	if c.Graph.MaxPages < 1 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s: must be at least 1", EnvGraphMaxPages))
	}

	if cerr.empty() {
		return nil
	}
	return cerr
}

// TokenURL returns the tenant-scoped v2.0 token endpoint.
func (c IdentityConfig) TokenURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(c.AuthorityURL, "/"), c.TenantID)
}

// ParseList parses a comma or whitespace separated string into a slice,
// trimming each element and filtering out empty strings.
// Returns nil if the input contains no values.
func ParseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// envParser reads typed values and remembers every one that failed to parse.
type envParser struct {
	getenv  func(string) string
	invalid []string
}

func (p *envParser) value(key string) string {
	return strings.TrimSpace(p.getenv(key))
}

func (p *envParser) fail(key, value, kind string) {
	p.invalid = append(p.invalid, fmt.Sprintf("%s: %q is not a valid %s", key, value, kind))
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	value := p.value(key)
	if value == "" {
		return def
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are seconds.
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	p.fail(key, value, "duration")
	return def
}

func (p *envParser) boolean(key string, def bool) bool {
	value := p.value(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, "boolean")
		return def
	}
	return parsed
}

func (p *envParser) integer(key string, def int) int {
	value := p.value(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, "integer")
		return def
	}
	return parsed
}

func (p *envParser) float(key string, def float64) float64 {
	value := p.value(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, "number")
		return def
	}
	return parsed
}
