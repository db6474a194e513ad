package identity

import (
	"fmt"
	"strings"

	"github.com/teemow/calstats/internal/config"
)

// Credentials identify this service to Microsoft Entra ID. They are loaded
// once at start-up and never mutated afterwards.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	AuthorityURL string
	Scopes       []string
}

// CredentialsFromConfig copies the identity settings out of the loaded
// configuration.
func CredentialsFromConfig(c config.IdentityConfig) Credentials {
	scopes := make([]string, len(c.Scopes))
	copy(scopes, c.Scopes)

	return Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TenantID:     c.TenantID,
		AuthorityURL: c.AuthorityURL,
		Scopes:       scopes,
	}
}

// TokenURL returns the tenant-scoped v2.0 token endpoint.
func (c Credentials) TokenURL() string {
	return config.IdentityConfig{AuthorityURL: c.AuthorityURL, TenantID: c.TenantID}.TokenURL()
}

// Validate reports missing fields and scopes that the client-credential
// grant cannot request. It returns a *config.ConfigError.
func (c Credentials) Validate() error {
	cerr := &config.ConfigError{}

	for _, f := range []struct {
		name  string
		value string
	}{
		{config.EnvClientID, c.ClientID},
		{config.EnvClientSecret, c.ClientSecret},
		{config.EnvTenantID, c.TenantID},
		{config.EnvAuthorityURL, c.AuthorityURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			cerr.Missing = append(cerr.Missing, f.name)
		}
	}

	if len(c.Scopes) == 0 {
		cerr.Missing = append(cerr.Missing, config.EnvScopes)
	}
	for _, s := range c.Scopes {
		if !IsApplicationScope(s) {
			cerr.Invalid = append(cerr.Invalid,
				fmt.Sprintf("%s: %q is not an application scope (expected <resource>/.default)", config.EnvScopes, s))
		}
	}

	if len(cerr.Missing) == 0 && len(cerr.Invalid) == 0 {
		return nil
	}
	return cerr
}

// String redacts the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{ClientID:%s TenantID:%s AuthorityURL:%s Scopes:%v ClientSecret:<redacted>}",
		c.ClientID, c.TenantID, c.AuthorityURL, c.Scopes)
}
