package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/calstats/internal/calendar"
	"github.com/teemow/calstats/internal/graph"
	"github.com/teemow/calstats/internal/identity"
	"github.com/teemow/calstats/internal/logging"
)

// statusClientClosedRequest is the de-facto code for a caller that went away.
const statusClientClosedRequest = 499

// Error codes in JSON error bodies.
const (
	codeBadRequest      = "bad_request"
	codeForbidden       = "forbidden"
	codeAuthError       = "auth_error"
	codeUpstreamTimeout = "upstream_timeout"
	codeUpstreamFailure = "upstream_unreachable"
	codeDataError       = "data_error"
	codeRangeTooLarge   = "range_too_large"
	codeCancelled       = "cancelled"
	codeInternal        = "internal_error"
)

// ErrorResponse is the JSON body of every error produced by this service.
// Upstream errors are relayed as Graph sent them instead.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Index     *int   `json:"index,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps err onto a status code and body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	requestID := RequestIDFromContext(r.Context())

	var (
		upstreamErr  *graph.UpstreamError
		authErr      *identity.AuthError
		transportErr *graph.TransportError
		dataErr      *calendar.DataError
	)

	switch {
	case errors.As(err, &upstreamErr):
		// Relay Graph's answer unchanged.
		w.Header().Set("Content-Type", upstreamErr.ContentType())
		w.WriteHeader(upstreamErr.StatusCode)
		_, _ = w.Write(upstreamErr.Body)
		return

	case errors.Is(err, context.Canceled):
		// The client went away; Graph failures wrapping the cancellation are
		// not upstream faults.
		logger.Info("request cancelled by client", logging.RequestID(requestID), logging.Err(err))
		writeJSON(w, statusClientClosedRequest, ErrorResponse{
			Error:     codeCancelled,
			RequestID: requestID,
		})

	case errors.As(err, &authErr):
		logger.Error("token acquisition failed", logging.RequestID(requestID), logging.Err(err))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:     codeAuthError,
			Message:   authErr.Error(),
			RequestID: requestID,
		})

	case errors.As(err, &transportErr):
		status, code := http.StatusBadGateway, codeUpstreamFailure
		if transportErr.Timeout() {
			status, code = http.StatusGatewayTimeout, codeUpstreamTimeout
		}
		logger.Error("upstream unreachable", logging.RequestID(requestID), logging.Err(err))
		writeJSON(w, status, ErrorResponse{
			Error:     code,
			Message:   "calendar service did not respond",
			RequestID: requestID,
		})

	case errors.As(err, &dataErr):
		logger.Error("malformed calendar data", logging.RequestID(requestID), logging.Err(err))
		index := dataErr.Index
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     codeDataError,
			Message:   dataErr.Error(),
			Index:     &index,
			RequestID: requestID,
		})

	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:     codeForbidden,
			Message:   err.Error(),
			RequestID: requestID,
		})

	case errors.Is(err, calendar.ErrMissingRange), errors.Is(err, calendar.ErrInvalidDimension):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     codeBadRequest,
			Message:   err.Error(),
			RequestID: requestID,
		})

	case errors.Is(err, calendar.ErrPageLimit):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     codeRangeTooLarge,
			Message:   err.Error(),
			RequestID: requestID,
		})

	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Error:     codeUpstreamTimeout,
			RequestID: requestID,
		})

	default:
		logger.Error("request failed", logging.RequestID(requestID), logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     codeInternal,
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		})
	}
}
