package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/teemow/calstats/internal/instrumentation"
	"github.com/teemow/calstats/internal/logging"
)

// APIKeyHeader carries the shared secret presented by callers.
const APIKeyHeader = "x-api-key"

// ErrForbidden is returned when the gate rejects a request.
var ErrForbidden = errors.New("invalid or missing API key")

// AccessGate checks a presented API key against the configured one.
type AccessGate struct {
	expected []byte
}

// NewAccessGate creates a gate for apiKey. Surrounding whitespace is ignored;
// an empty key authorises nothing.
func NewAccessGate(apiKey string) *AccessGate {
	return &AccessGate{expected: []byte(strings.TrimSpace(apiKey))}
}

// IsAuthorized reports whether presented, trimmed, equals the configured key.
// The comparison takes constant time for keys of equal length.
func (g *AccessGate) IsAuthorized(presented string) bool {
	if g == nil || len(g.expected) == 0 {
		return false
	}
	got := []byte(strings.TrimSpace(presented))
	return subtle.ConstantTimeCompare(got, g.expected) == 1
}

// requireKey wraps next so it only runs for requests carrying a valid key.
// Rejections are answered with 403 before next sees the request.
func (s *HTTPServer) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(APIKeyHeader)
		allowed := s.gate.IsAuthorized(presented)

		route := instrumentation.NormalizeRoute(r.URL.Path)
		decision := &instrumentation.AccessDecision{
			Method:     r.Method,
			Route:      route,
			RemoteAddr: r.RemoteAddr,
			RequestID:  RequestIDFromContext(r.Context()),
			Allowed:    allowed,
		}

		if !allowed {
			decision.Reason = instrumentation.DenialInvalidKey
			if strings.TrimSpace(presented) == "" {
				decision.Reason = instrumentation.DenialMissingKey
			}

			s.sc.AuditLogger().LogAccessDecision(decision)
			s.sc.Metrics().RecordAccessDenial(r.Context(), route, decision.Reason)
			s.logger.Warn("request rejected by access gate",
				logging.Route(route),
				logging.RequestID(decision.RequestID),
				"reason", decision.Reason)

			writeError(w, r, s.logger, ErrForbidden)
			return
		}

		s.sc.AuditLogger().LogAccessDecision(decision)
		next.ServeHTTP(w, r)
	})
}
