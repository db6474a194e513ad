package identity

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calstats/internal/config"
)

func TestCredentialsFromConfig(t *testing.T) {
	cfg := config.IdentityConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TenantID:     "tenant",
		AuthorityURL: "https://login.microsoftonline.com",
		Scopes:       []string{config.DefaultGraphScope},
	}

	creds := CredentialsFromConfig(cfg)
	require.NoError(t, creds.Validate())
	assert.Equal(t, "https://login.microsoftonline.com/tenant/oauth2/v2.0/token", creds.TokenURL())

	// The credentials own their scope slice.
	cfg.Scopes[0] = "changed"
	assert.Equal(t, config.DefaultGraphScope, creds.Scopes[0])
}

func TestCredentials_Validate(t *testing.T) {
	var cerr *config.ConfigError
	require.ErrorAs(t, Credentials{}.Validate(), &cerr)
	assert.ElementsMatch(t, []string{
		config.EnvClientID, config.EnvClientSecret, config.EnvTenantID,
		config.EnvAuthorityURL, config.EnvScopes,
	}, cerr.Missing)
}

func TestCredentials_StringRedactsSecret(t *testing.T) {
	creds := testCredentials("https://login.microsoftonline.com")
	assert.NotContains(t, creds.String(), "client-secret")
	assert.Contains(t, creds.String(), "<redacted>")
}

func TestIsApplicationScope(t *testing.T) {
	assert.True(t, IsApplicationScope(config.DefaultGraphScope))
	assert.True(t, IsApplicationScope(" api://calstats/.default "))
	assert.False(t, IsApplicationScope("/.default"))
	assert.False(t, IsApplicationScope("Calendars.Read"))
	assert.False(t, IsApplicationScope(""))
}

func TestNewAuthError(t *testing.T) {
	retrieve := &oauth2.RetrieveError{
		Response:         &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode:        "invalid_scope",
		ErrorDescription: "AADSTS70011: The provided value for scope is not valid.",
	}

	authErr := newAuthError(retrieve)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Equal(t, "invalid_scope", authErr.Code)
	assert.Equal(t, "token request failed: invalid_scope: AADSTS70011: The provided value for scope is not valid.", authErr.Error())
	assert.True(t, errors.Is(authErr, retrieve))

	plain := newAuthError(errors.New("dial tcp: connection refused"))
	assert.Zero(t, plain.StatusCode)
	assert.Equal(t, "token request failed: dial tcp: connection refused", plain.Error())
}
