// Package metrics collects Prometheus metrics and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface the service layer and middleware use.
// Depending on this interface (not *Collector) keeps tests free of a registry.
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordVerification(outcome string)
	RecordAdminElevation()
	RecordPostMutation(op string)
	RecordViewIncrement(ok bool)
}

// Verification outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidToken = "invalid_token"
	OutcomeForbidden    = "forbidden"
	OutcomeError        = "error"
)

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	verifications  *prometheus.CounterVec
	elevations     prometheus.Counter
	postMutations  *prometheus.CounterVec
	viewIncrements *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cms_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_identity_verifications_total",
			Help: "Bearer token verifications by outcome.",
		}, []string{"outcome"}),
		elevations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cms_admin_elevations_total",
			Help: "Users elevated to ADMIN.",
		}),
		postMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_post_mutations_total",
			Help: "Successful post writes by operation.",
		}, []string{"op"}),
		viewIncrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cms_post_view_increments_total",
			Help: "View counter increments by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.verifications,
		c.elevations,
		c.postMutations,
		c.viewIncrements,
	)

	return c
}

// RecordHTTPRequest records one served request. route is the chi route
// pattern ("/api/blog/posts/{id}"), never the raw path, to keep label
// cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordVerification records the outcome of a token verification.
func (c *Collector) RecordVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

// RecordAdminElevation records a USER → ADMIN promotion.
func (c *Collector) RecordAdminElevation() {
	c.elevations.Inc()
}

// RecordPostMutation records a successful create/update/delete.
func (c *Collector) RecordPostMutation(op string) {
	c.postMutations.WithLabelValues(op).Inc()
}

// RecordViewIncrement records a best-effort view bump.
func (c *Collector) RecordViewIncrement(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.viewIncrements.WithLabelValues(result).Inc()
}

// Nop discards everything. Used when metrics are not wired (tests, tools).
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordVerification(string)                             {}
func (Nop) RecordAdminElevation()                                 {}
func (Nop) RecordPostMutation(string)                             {}
func (Nop) RecordViewIncrement(bool)                              {}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
