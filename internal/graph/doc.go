// Package graph is a thin, authenticated GET client for Microsoft Graph.
//
// Every request carries a bearer token from an identity.TokenProvider and is
// bounded by a 30 second timeout. The client does not retry. A response with
// status >= 400 becomes an *UpstreamError that keeps the body exactly as
// received; a request that produced no response becomes a *TransportError.
// Both match the sentinel kinds (ErrNotFound, ErrRateLimited, ...) through
// errors.Is where applicable.
//
// A 429 response defers later requests by its Retry-After; a 401 drops the
// provider's cached token when the provider supports it.
package graph
