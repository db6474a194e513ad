package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calstats/internal/calendar"
	"github.com/teemow/calstats/internal/graph"
	"github.com/teemow/calstats/internal/identity"
	"github.com/teemow/calstats/internal/instrumentation"
)

func TestNewServerContext_Validation(t *testing.T) {
	client, err := graph.NewClient(identity.StaticToken("t"), graph.Config{})
	require.NoError(t, err)
	svc := calendar.NewService(client, calendar.ServiceConfig{})

	_, err = NewServerContext(context.Background(), ServerContextConfig{TargetUser: testUser})
	assert.ErrorContains(t, err, "calendar service is required")

	_, err = NewServerContext(context.Background(), ServerContextConfig{Calendar: svc})
	assert.ErrorContains(t, err, "target user is required")

	sc, err := NewServerContext(context.Background(), ServerContextConfig{Calendar: svc, TargetUser: testUser})
	require.NoError(t, err)
	assert.Same(t, svc, sc.Calendar())
	assert.Equal(t, testUser, sc.TargetUser())
	assert.NotNil(t, sc.Logger())

	_, ok := sc.TokenStatus()
	assert.False(t, ok)
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := newHealthContext(t, nil)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)

	// Idempotent.
	require.NoError(t, sc.Shutdown())
}

func TestServerContext_Instrumentation(t *testing.T) {
	sc := newHealthContext(t, nil)
	assert.Nil(t, sc.Metrics())
	assert.Nil(t, sc.AuditLogger())

	al := instrumentation.NewAuditLoggerWithConfig(nil, instrumentation.AuditLoggingConfig{Enabled: true})
	sc.SetAuditLogger(al)
	assert.Same(t, al, sc.AuditLogger())

	m := &instrumentation.Metrics{}
	sc.SetMetrics(m)
	assert.Same(t, m, sc.Metrics())
}
