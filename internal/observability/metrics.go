package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	issuancesTotal  *prometheus.CounterVec
	labelJobsTotal  *prometheus.CounterVec
	pushSendsTotal  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	issuances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partline_issuances_total",
		Help: "Committed issuances by kind (matched or forced).",
	}, []string{"kind"})
	labelJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partline_label_jobs_total",
		Help: "Label generation jobs by outcome.",
	}, []string{"outcome"})
	pushSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partline_push_sends_total",
		Help: "Web push deliveries by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, issuances, labelJobs, pushSends)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		issuancesTotal:  issuances,
		labelJobsTotal:  labelJobs,
		pushSendsTotal:  pushSends,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
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

// CountIssuance increments the issuance counter for the given kind.
func (m *Metrics) CountIssuance(forced bool) {
	if m == nil {
		return
	}
	kind := "matched"
	if forced {
		kind = "forced"
	}
	m.issuancesTotal.WithLabelValues(kind).Inc()
}

// CountLabelJob increments the label job counter for the given outcome.
func (m *Metrics) CountLabelJob(outcome string) {
	if m == nil {
		return
	}
	m.labelJobsTotal.WithLabelValues(outcome).Inc()
}

// CountPushSend increments the push delivery counter for the given outcome.
func (m *Metrics) CountPushSend(outcome string) {
	if m == nil {
		return
	}
	m.pushSendsTotal.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
