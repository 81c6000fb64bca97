package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stocksync/internal/core"
)

var _ core.Observer = (*Metrics)(nil)

func TestMiddlewareRecordsRequest(t *testing.T) {
	m := New()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/imports/{id}")
	req := httptest.NewRequest(http.MethodGet, "/api/imports/abc", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/imports/{id}", "418")))

	metricsRR := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRR.Body.String(), `stocksync_http_request_duration_seconds_bucket{route="/api/imports/{id}"`)
}

func TestMiddlewarePreservesFlusher(t *testing.T) {
	m := New()
	flushed := false

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		f.Flush()
		flushed = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, flushed)
	assert.True(t, rr.Flushed)
}

func TestImportObserver(t *testing.T) {
	m := New()

	m.ImportValidated(true, 3)
	m.ImportValidated(false, 2)
	m.ImportValidated(true, 1)
	m.ImportApplied(core.BatchSummary{Total: 4, Succeeded: 2, Failed: 1, Skipped: 1}, 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("invalid")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.rowsValidated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.applies))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("failed")))
}

func TestObserveActiveImports(t *testing.T) {
	m := New()
	active := 2
	m.ObserveActiveImports(func() int { return active })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rr.Body.String(), "stocksync_imports_active 2"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}
