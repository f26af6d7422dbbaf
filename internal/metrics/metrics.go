// Package metrics exposes Prometheus counters for Discogs traffic and enrichment
// outcomes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crate"

// Metrics holds the collectors recorded by the Discogs client and the coordinator.
type Metrics struct {
	requests  *prometheus.CounterVec
	retries   prometheus.Counter
	cooldowns *prometheus.CounterVec
	gateWait  prometheus.Histogram
	lookups   *prometheus.CounterVec
	inFlight  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discogs",
			Name:      "requests_total",
			Help:      "Discogs HTTP attempts by status code (0 for transport failures).",
		}, []string{"status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discogs",
			Name:      "retries_total",
			Help:      "Attempts repeated after a 429 response.",
		}),
		cooldowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discogs",
			Name:      "cooldowns_total",
			Help:      "Cooldowns applied to the rate gate by reason.",
		}, []string{"reason"}),
		gateWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discogs",
			Name:      "gate_wait_seconds",
			Help:      "Time spent waiting for rate gate admission.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 120},
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookups_total",
			Help:      "Finished lookups by outcome.",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookups_in_flight",
			Help:      "Lookups started and not yet finished.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.cooldowns, m.gateWait, m.lookups, m.inFlight)
	}
	return m
}

// ObserveRequest counts one HTTP attempt.
func (m *Metrics) ObserveRequest(status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveRetry counts one 429 retry.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// ObserveCooldown counts a cooldown signal ("retry_after", "exhausted").
func (m *Metrics) ObserveCooldown(reason string) {
	if m == nil {
		return
	}
	m.cooldowns.WithLabelValues(reason).Inc()
}

// ObserveGateWait records how long an admission took.
func (m *Metrics) ObserveGateWait(d time.Duration) {
	if m == nil {
		return
	}
	m.gateWait.Observe(d.Seconds())
}

// LookupStarted increments the in-flight gauge.
func (m *Metrics) LookupStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// LookupFinished decrements the in-flight gauge and counts the outcome.
func (m *Metrics) LookupFinished(outcome string) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.lookups.WithLabelValues(outcome).Inc()
}
