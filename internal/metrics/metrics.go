// Package metrics registers the Prometheus collectors of the analytics core:
//
//	gpcore_fetch_failures_total{op}
//	gpcore_eligibility_anomalies_total
//	gpcore_referral_expansions_total{outcome}
//	gpcore_referral_affiliates
//	gpcore_poll_duration_seconds
//	gpcore_stale_results_total{kind}
//
// Every method is safe on a nil *Metrics so packages can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gpcore"

// Expansion outcomes.
const (
	OutcomeExpanded = "expanded"
	OutcomeCached   = "cached"
	OutcomeTerminal = "terminal"
	OutcomeFailed   = "failed"
)

// Stale result kinds.
const (
	StalePoll      = "poll"
	StaleExpansion = "expansion"
)

// Metrics holds the collectors. Construct with New.
type Metrics struct {
	fetchFailures        *prometheus.CounterVec
	eligibilityAnomalies prometheus.Counter
	expansions           *prometheus.CounterVec
	affiliates           prometheus.Gauge
	pollDuration         prometheus.Histogram
	staleResults         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
// When reg is also a Gatherer, Handler serves exactly what was registered there.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed collaborator fetches by operation",
		}, []string{"op"}),
		eligibilityAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_anomalies_total",
			Help:      "Tiers whose local breakdown contradicted the pool's eligibility flag",
		}),
		expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_expansions_total",
			Help:      "Referral node expansions by outcome",
		}, []string{"outcome"}),
		affiliates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "referral_affiliates",
			Help:      "Affiliates discovered in the current referral tree",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a dashboard poll",
			Buckets:   prometheus.DefBuckets,
		}),
		staleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Results discarded because a newer poll or identity superseded them",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.fetchFailures,
		m.eligibilityAnomalies,
		m.expansions,
		m.affiliates,
		m.pollDuration,
		m.staleResults,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// NewWithRuntime creates a fresh registry with the Go and process collectors plus the core collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registry the metrics were created on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchFailed(op string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) EligibilityAnomalies(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eligibilityAnomalies.Add(float64(n))
}

func (m *Metrics) Expansion(outcome string) {
	if m == nil {
		return
	}
	m.expansions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetAffiliates(total int64) {
	if m == nil {
		return
	}
	m.affiliates.Set(float64(total))
}

func (m *Metrics) ObservePoll(d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
}

func (m *Metrics) StaleDiscarded(kind string) {
	if m == nil {
		return
	}
	m.staleResults.WithLabelValues(kind).Inc()
}
