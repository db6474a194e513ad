package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calstats/internal/calendar"
	"github.com/teemow/calstats/internal/config"
)

// newFakeCloud serves a token endpoint and a calendarView for one mailbox.
func newFakeCloud(t *testing.T, events string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tenant/oauth2/v2.0/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1.0/users/planner@contoso.com/calendarView", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer app-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, events)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func cloudEnv(srv *httptest.Server) func(string) string {
	return envMap(map[string]string{
		config.EnvClientID:     "client",
		config.EnvClientSecret: "secret",
		config.EnvTenantID:     "tenant",
		config.EnvAuthorityURL: srv.URL,
		config.EnvGraphBaseURL: srv.URL + "/v1.0",
		config.EnvTargetUser:   "planner@contoso.com",
	})
}

func TestRunStats(t *testing.T) {
	srv := newFakeCloud(t, `{"value":[
		{"start":{"dateTime":"2024-03-04T09:00:00","timeZone":"UTC"},"end":{"dateTime":"2024-03-04T10:00:00","timeZone":"UTC"},"showAs":"busy","categories":["Planning"]},
		{"start":{"dateTime":"2024-03-04T10:00:00","timeZone":"UTC"},"end":{"dateTime":"2024-03-04T10:15:00","timeZone":"UTC"},"showAs":"free","categories":[]}
	]}`)

	tests := []struct {
		name    string
		groupBy string
		want    calendar.BucketMap
	}{
		{name: "category", groupBy: "category", want: calendar.BucketMap{"Planning": 1, "Uncategorized": 0.25}},
		{name: "status", groupBy: "status", want: calendar.BucketMap{"busy": 1, "free": 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newStatsCmd()
			var out, logs bytes.Buffer
			cmd.SetErr(&logs)

			err := runStats(context.Background(), cmd, statsOptions{
				start:   "2024-03-04T00:00:00Z",
				end:     "2024-03-05T00:00:00Z",
				groupBy: tt.groupBy,
			}, cloudEnv(srv), &out)
			require.NoError(t, err, logs.String())

			var got calendar.BucketMap
			require.NoError(t, json.Unmarshal(out.Bytes(), &got))
			assert.InDeltaMapValues(t, tt.want, got, 1e-9)
			assert.NotContains(t, logs.String(), "app-token")
		})
	}
}

func TestRunStats_Errors(t *testing.T) {
	srv := newFakeCloud(t, `{"value":[]}`)

	tests := []struct {
		name     string
		opts     statsOptions
		env      func(string) string
		contains string
	}{
		{
			name:     "missing range",
			opts:     statsOptions{start: "2024-03-04T00:00:00Z"},
			env:      cloudEnv(srv),
			contains: "start and end are required",
		},
		{
			name:     "bad grouping",
			opts:     statsOptions{start: "2024-03-04T00:00:00Z", end: "2024-03-05T00:00:00Z", groupBy: "organizer"},
			env:      cloudEnv(srv),
			contains: "invalid dimension",
		},
		{
			name:     "missing configuration",
			opts:     statsOptions{start: "2024-03-04T00:00:00Z", end: "2024-03-05T00:00:00Z"},
			env:      envMap(nil),
			contains: config.EnvClientSecret,
		},
		{
			name:     "unknown log level",
			opts:     statsOptions{start: "2024-03-04T00:00:00Z", end: "2024-03-05T00:00:00Z", log: logOptions{level: "loud"}},
			env:      cloudEnv(srv),
			contains: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newStatsCmd()
			cmd.SetErr(io.Discard)

			var out bytes.Buffer
			err := runStats(context.Background(), cmd, tt.opts, tt.env, &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Empty(t, out.String())
		})
	}
}

func TestLogOptions_Level(t *testing.T) {
	tests := []struct {
		name  string
		opts  logOptions
		debug bool
		info  bool
	}{
		{name: "default", opts: logOptions{}, info: true},
		{name: "warn", opts: logOptions{level: "warn"}},
		{name: "debug level", opts: logOptions{level: "debug"}, debug: true, info: true},
		{name: "debug flag wins", opts: logOptions{level: "error", debug: true}, debug: true, info: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := tt.opts.newLogger(io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Enabled(t.Context(), slog.LevelDebug))
			assert.Equal(t, tt.info, logger.Enabled(t.Context(), slog.LevelInfo))
		})
	}
}
