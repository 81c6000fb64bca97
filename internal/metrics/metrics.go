// Package metrics exposes Prometheus metrics for the HTTP API and the
// import pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/stocksync/internal/core"
)

const namespace = "stocksync"

// Metrics collects Prometheus metrics for the application.
// It implements core.Observer.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	validations     *prometheus.CounterVec
	rowsValidated   prometheus.Counter
	applies         prometheus.Counter
	outcomes        *prometheus.CounterVec
	applyDuration   prometheus.Histogram
}

// New initializes the registry and all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_validations_total",
			Help:      "Validated import files by result.",
		}, []string{"result"}),
		rowsValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_validated_total",
			Help:      "Data rows seen by the validator.",
		}),
		applies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_applies_total",
			Help:      "Completed apply operations.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_outcomes_total",
			Help:      "Per-row reconciliation outcomes by status.",
		}, []string{"status"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_apply_duration_seconds",
			Help:      "Wall time of apply operations.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}

	registry.MustRegister(
		m.requestsTotal, m.requestDuration,
		m.validations, m.rowsValidated,
		m.applies, m.outcomes, m.applyDuration,
		prometheus.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and duration for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveActiveImports exports the number of running applies.
func (m *Metrics) ObserveActiveImports(active func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "imports_active",
		Help:      "Apply operations currently holding a slot.",
	}, func() float64 { return float64(active()) }))
}

// ImportValidated implements core.Observer.
func (m *Metrics) ImportValidated(valid bool, rows int) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validations.WithLabelValues(result).Inc()
	m.rowsValidated.Add(float64(rows))
}

// ImportApplied implements core.Observer.
func (m *Metrics) ImportApplied(summary core.BatchSummary, elapsed time.Duration) {
	m.applies.Inc()
	m.outcomes.WithLabelValues(string(core.StatusSucceeded)).Add(float64(summary.Succeeded))
	m.outcomes.WithLabelValues(string(core.StatusFailed)).Add(float64(summary.Failed))
	m.outcomes.WithLabelValues(string(core.StatusSkipped)).Add(float64(summary.Skipped))
	m.applyDuration.Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps server-sent event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
