// Package metrics bundles the Prometheus collectors shared by the HTTP server, the
// notification orchestrator, the RSVP pipeline and the list cache.
package metrics

import (
	"net/http"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every recording method is a no-op on a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	notifications *prometheus.CounterVec
	rsvps         *prometheus.CounterVec
	cache         *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evermore_http_requests_total",
				Help: "Total count of HTTP requests received.",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evermore_http_request_duration_seconds",
				Help:    "Histogram of request durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evermore_http_inflight_requests",
			Help: "Number of requests currently being handled.",
		}),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evermore_notifications_total",
				Help: "Notification channel outcomes by kind.",
			},
			[]string{"kind", "channel", "status"},
		),
		rsvps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evermore_rsvp_submissions_total",
				Help: "RSVP submissions by outcome.",
			},
			[]string{"outcome"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evermore_cache_lookups_total",
				Help: "List cache lookups by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.inFlight, m.notifications, m.rsvps, m.cache)
	return m
}

// Handler exposes /metrics for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BeginRequest increments the in-flight gauge and returns a func recording the finished request.
func (m *Metrics) BeginRequest() func(method, route, status string, seconds float64) {
	if m == nil {
		return func(string, string, string, float64) {}
	}
	m.inFlight.Inc()
	return func(method, route, status string, seconds float64) {
		m.inFlight.Dec()
		m.requests.WithLabelValues(method, route, status).Inc()
		m.duration.WithLabelValues(method, route, status).Observe(seconds)
	}
}

// Notification records one channel outcome (success, failed, skipped).
func (m *Metrics) Notification(kind, channel, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, channel, status).Inc()
}

// RSVP records a submission outcome (accepted, declined, closed, not_found, invalid, error).
func (m *Metrics) RSVP(outcome string) {
	if m == nil {
		return
	}
	m.rsvps.WithLabelValues(outcome).Inc()
}

// CacheLookup records hit, miss or error.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// SanitizePath reduces cardinality by collapsing long or parameterised paths.
// Used when gin has no matched route template (404s).
func SanitizePath(p string) string {
	clean := path.Clean(p)
	if clean == "" || clean == "." {
		return "/"
	}
	segments := strings.Split(clean, "/")
	// The first element is empty for absolute paths; keep up to three actual segments.
	out := segments
	if len(segments) > 4 {
		out = append(segments[:4], "...")
	}
	res := strings.Join(out, "/")
	if !strings.HasPrefix(res, "/") {
		res = "/" + res
	}
	return res
}
