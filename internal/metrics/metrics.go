package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"exam-session-service/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted   prometheus.Counter
	sessionsSubmitted *prometheus.CounterVec
	sessionsAbandoned prometheus.Counter
	scoreRatio        prometheus.Histogram

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Total number of exam sessions started",
		}),
		sessionsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_sessions_submitted_total",
			Help: "Total number of exam sessions submitted",
		}, []string{"trigger"}),
		sessionsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sessions_abandoned_total",
			Help: "Total number of exam sessions abandoned before submission",
		}),
		scoreRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_session_score_ratio",
			Help:    "Score divided by question count for submitted sessions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.sessionsStarted,
		m.sessionsSubmitted,
		m.sessionsAbandoned,
		m.scoreRatio,
		m.requests,
		m.requestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionSubmitted(trigger domain.SubmitTrigger, score, total int) {
	if m == nil {
		return
	}
	m.sessionsSubmitted.WithLabelValues(string(trigger)).Inc()
	if total > 0 {
		m.scoreRatio.Observe(float64(score) / float64(total))
	}
}

func (m *Metrics) SessionAbandoned() {
	if m == nil {
		return
	}
	m.sessionsAbandoned.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency. route resolves the
// low-cardinality route pattern after the handler has run.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := route(r)
			if pattern == "" {
				pattern = "unmatched"
			}
			m.requests.WithLabelValues(r.Method, pattern, strconv.Itoa(statusOf(ww, r))).Inc()
			m.requestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		})
	}
}

// statusOf reports the written status. Hijacked WebSocket upgrades never
// write one through the wrapper.
func statusOf(ww middleware.WrapResponseWriter, r *http.Request) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}
