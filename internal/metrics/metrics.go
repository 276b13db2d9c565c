// Package metrics exposes Prometheus counters for auth calls, guard
// decisions and session updates.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the provider, guard and service report into.
type Recorder interface {
	RecordRequest(endpoint, outcome string, d time.Duration)
	RecordGuardDecision(state, reason string)
	RecordSessionUpdate(kind string)
}

type Collector struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	decisions *prometheus.CounterVec
	updates   *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_requests_total",
			Help: "Auth API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authclient_request_duration_seconds",
			Help:    "Auth API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_guard_decisions_total",
			Help: "Route guard decisions by state and reason.",
		}, []string{"state", "reason"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_session_updates_total",
			Help: "Current user updates by kind (login, restore, logout).",
		}, []string{"kind"}),
	}

	reg.MustRegister(c.requests, c.latency, c.decisions, c.updates)

	return c
}

func (c *Collector) RecordRequest(endpoint, outcome string, d time.Duration) {
	c.requests.WithLabelValues(endpoint, outcome).Inc()
	c.latency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collector) RecordGuardDecision(state, reason string) {
	c.decisions.WithLabelValues(state, reason).Inc()
}

func (c *Collector) RecordSessionUpdate(kind string) {
	c.updates.WithLabelValues(kind).Inc()
}

// Handler serves the metrics of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, time.Duration) {}
func (Nop) RecordGuardDecision(string, string)          {}
func (Nop) RecordSessionUpdate(string)                  {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
