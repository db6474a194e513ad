package server

import (
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// Token cache states. None of them fails readiness: tokens are acquired on
// demand by the first request that needs one.
const (
	tokenStateValid       = "valid"
	tokenStateExpired     = "expired"
	tokenStateNotAcquired = "not acquired"
)

// HealthChecker serves the liveness and readiness probes. The probes are
// never behind the access gate and never touch Microsoft Graph.
type HealthChecker struct {
	ready   atomic.Bool
	sc      *ServerContext
	started time.Time
}

// NewHealthChecker returns a checker that reports ready. sc may be nil.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, started: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady flips readiness; the HTTP server clears it before draining.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the readiness flag.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status string       `json:"status"`
	Uptime string       `json:"uptime"`
	Token  *TokenHealth `json:"token,omitempty"`
}

// TokenHealth describes the token cache without exposing the token.
type TokenHealth struct {
	State     string     `json:"state"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RegisterHealthEndpoints mounts the probes on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 once the server is draining or shut down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]string{
			"ready":    healthStatusOK,
			"shutdown": healthStatusOK,
		}
		if !h.IsReady() {
			checks["ready"] = healthStatusNotReady
		}
		if h.shuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
		}
		if token := h.tokenHealth(); token != nil {
			checks["token"] = token.State
		}

		status, code := h.overall()
		if status != healthStatusOK {
			status = healthStatusNotReady
		}
		writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler adds uptime and token cache state.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, code := h.overall()
		resp := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.started).Truncate(time.Second).String(),
		}
		if code == http.StatusOK {
			resp.Token = h.tokenHealth()
		}
		writeJSON(w, code, resp)
	})
}

func (h *HealthChecker) overall() (string, int) {
	switch {
	case !h.IsReady():
		return healthStatusNotReady, http.StatusServiceUnavailable
	case h.shuttingDown():
		return healthStatusShuttingDown, http.StatusServiceUnavailable
	default:
		return healthStatusOK, http.StatusOK
	}
}

func (h *HealthChecker) shuttingDown() bool {
	return h.sc != nil && h.sc.IsShutdown()
}

// tokenHealth returns nil when no token reporter is configured.
func (h *HealthChecker) tokenHealth() *TokenHealth {
	if h.sc == nil {
		return nil
	}
	status, ok := h.sc.TokenStatus()
	if !ok {
		return nil
	}
	if !status.Cached {
		return &TokenHealth{State: tokenStateNotAcquired}
	}

	expiresAt := status.ExpiresAt.UTC()
	state := tokenStateExpired
	if status.Valid {
		state = tokenStateValid
	}
	return &TokenHealth{State: state, ExpiresAt: &expiresAt}
}
