// Package identity obtains application access tokens for Microsoft Graph
// using the OAuth2 client-credential grant against Microsoft Entra ID.
//
// Credentials are loaded once at start-up. TokenManager keeps a single
// cached token, replaced wholesale on refresh, and never hands out a token
// within ExpiryMargin of its expiry. Concurrent callers that find the cache
// cold share one token request.
//
// Failures are reported as *AuthError, carrying the provider's error code and
// description when it sent them. Failed acquisitions are not cached and not
// retried.
//
//	tm, err := identity.NewTokenManager(identity.CredentialsFromConfig(cfg.Identity), identity.ManagerConfig{})
//	if err != nil {
//		return err
//	}
//	token, err := tm.GetToken(ctx)
package identity
