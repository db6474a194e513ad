package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calstats/internal/graph"
	"github.com/teemow/calstats/internal/instrumentation"
	"github.com/teemow/calstats/internal/logging"
)

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("abc-123"))
	assert.True(t, validRequestID(strings.Repeat("a", maxRequestIDLength)))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID(strings.Repeat("a", maxRequestIDLength+1)))
	assert.False(t, validRequestID("has space"))
	assert.False(t, validRequestID("line\nbreak"))
	assert.False(t, validRequestID("ünïcode"))
}

func TestWithRequestID(t *testing.T) {
	var seen, forwarded string
	h := withRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		forwarded = graph.ClientRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotEmpty(t, seen)
	assert.NotEqual(t, "bad id", seen)
	assert.Equal(t, seen, forwarded)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestWithRecovery(t *testing.T) {
	h := withRequestID(withRecovery(logging.DiscardLogger().Logger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, codeInternal, body.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Equal(t, rec.Header().Get(RequestIDHeader), body.RequestID)
}

func TestWithRecovery_AbortHandlerPropagates(t *testing.T) {
	h := withRecovery(logging.DiscardLogger().Logger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestWithAccessLog_RecordsStatus(t *testing.T) {
	var captured *statusWriter
	h := withAccessLog(logging.DiscardLogger().Logger(), func() *instrumentation.Metrics { return nil },
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			captured = w.(*statusWriter)
			w.WriteHeader(http.StatusTeapot)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("x"))
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.NotNil(t, captured)
	assert.Equal(t, http.StatusTeapot, captured.status)
}

func TestStatusWriter_DefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	_, err := sw.Write([]byte("hello"))
	require.NoError(t, err)
	sw.Flush()

	assert.Equal(t, http.StatusOK, sw.status)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, sw.Unwrap())
}
