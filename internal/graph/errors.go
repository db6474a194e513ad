package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel kinds matched by errors.Is on an *UpstreamError.
var (
	ErrUnauthorised = errors.New("graph: unauthorised")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrRateLimited  = errors.New("graph: rate limited")
	ErrBadRequest   = errors.New("graph: bad request")
	ErrServerError  = errors.New("graph: server error")
)

// ErrResponseTooLarge is wrapped in a *TransportError when a response body
// exceeds the client's limit. The body is discarded rather than truncated.
var ErrResponseTooLarge = errors.New("graph: response body too large")

// statusKind maps an HTTP status onto its sentinel, or nil when none applies.
func statusKind(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthorised
	case statusCode == http.StatusForbidden:
		return ErrForbidden
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode >= 500:
		return ErrServerError
	case statusCode >= 400:
		return ErrBadRequest
	default:
		return nil
	}
}

// UpstreamError is a Graph response with status >= 400. Body holds the
// response exactly as received so callers can relay it.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       []byte
	Header     http.Header

	// Code and Message come from Graph's {"error":{"code","message"}}
	// envelope when the body carries one.
	Code    string
	Message string

	// RetryAfter is the parsed Retry-After header, zero when absent.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s: status %d", e.Operation, e.StatusCode)
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether target is the sentinel kind for e's status.
func (e *UpstreamError) Is(target error) bool {
	kind := statusKind(e.StatusCode)
	return kind != nil && kind == target
}

// ContentType returns the upstream Content-Type, defaulting to JSON.
func (e *UpstreamError) ContentType() string {
	if e.Header != nil {
		if ct := e.Header.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return "application/json"
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newUpstreamError(operation string, resp *http.Response, body []byte, now time.Time) *UpstreamError {
	e := &UpstreamError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header.Clone(),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), now),
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		e.Code = env.Error.Code
		e.Message = env.Error.Message
	}
	return e
}

// TransportError means no usable HTTP response was received: connection
// failure, timeout, cancellation or an oversized body.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("graph %s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}
