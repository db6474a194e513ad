package identity

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/oauth2"
)

// AuthError reports that a token could not be obtained: the identity
// provider refused the client-credential grant, answered without a usable
// token, or could not be reached.
//
// It is never the caller's fault, so HTTP surfaces map it to a 5xx.
type AuthError struct {
	// StatusCode is the identity provider's HTTP status, or 0 when no
	// response was received.
	StatusCode int

	// Code and Description carry the provider's "error" and
	// "error_description" fields when present.
	Code        string
	Description string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token request failed: %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token request failed: %s", e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("token request failed with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("token request failed: %v", e.Err)
	default:
		return "token request failed"
	}
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the identity provider did not answer in time.
func (e *AuthError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// newAuthError maps an error from the client-credential exchange to an
// *AuthError, lifting the provider's error fields out of *oauth2.RetrieveError.
func newAuthError(err error) *AuthError {
	authErr := &AuthError{Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr.Code = retrieveErr.ErrorCode
		authErr.Description = retrieveErr.ErrorDescription
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
	}

	return authErr
}
