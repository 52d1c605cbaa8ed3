package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
)

func TestGetAccessSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrLogin(observability.LoginActive)
	m.IncrLogin(observability.LoginActive)
	m.IncrLogin(observability.LoginDenied)
	m.IncrLogin(observability.LoginBadCreds)
	m.IncrScheduleDenial(domain.RoleEmployee)
	m.IncrRoleRequest("submitted")
	m.IncrExternalError("supabase/user_roles")
	m.IncrExternalError("supabase/profiles")

	snap := m.GetAccessSnapshot()
	assert.Equal(t, int64(4), snap.LoginsTotal)
	assert.Equal(t, int64(2), snap.LoginsByOutcome[observability.LoginActive])
	assert.Equal(t, int64(1), snap.ScheduleDenials["employee"])
	assert.Equal(t, int64(1), snap.RoleRequestsByStep["submitted"])
	assert.Equal(t, int64(2), snap.ExternalErrors)
	assert.InDelta(t, 0.25, snap.DenialRate, 1e-9)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.IncrLogin(observability.LoginActive)

	assert.Equal(t, int64(0), b.GetAccessSnapshot().LoginsTotal)
}

func TestZapLoggerMiddleware_TagsUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	h := observability.ZapLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.TagRequest(r.Context(), "u-1", "manager")
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/buses", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "manager", fields["role"])
	assert.EqualValues(t, http.StatusNoContent, fields["status"])
}

func TestTagRequest_WithoutMiddlewareIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		observability.TagRequest(context.Background(), "u", "r")
	})
}

func TestInitTracer_WithoutEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer(context.Background(), "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracingMiddleware_EchoesTraceID(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	h := observability.TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Header().Get("X-Trace-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("X-Trace-Id"))
}
