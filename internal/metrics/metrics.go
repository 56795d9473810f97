// Package metrics exports search and session statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "btcvanity"

// Metrics holds every collector of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	attempts     prometheus.Counter
	generated    prometheus.Counter
	jobs         *prometheus.CounterVec
	activeJobs   prometheus.Gauge
	sessions     prometheus.Gauge
	jobDurations *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Candidate addresses generated by searches.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "random_addresses_total",
			Help:      "Addresses generated without pattern matching.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished searches by outcome.",
		}, []string{"outcome"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Searches currently running or paused.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_sessions",
			Help:      "Open WebSocket sessions.",
		}),
		jobDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall clock duration of finished searches.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"outcome"}),
	}

	startTime := time.Now()
	m.registry.MustRegister(
		m.attempts, m.generated, m.jobs, m.activeJobs, m.sessions,
		m.jobDurations,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Uptime of the service in seconds.",
		}, func() float64 {
			return time.Since(startTime).Seconds()
		}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AddAttempts counts n more candidates.
func (m *Metrics) AddAttempts(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.attempts.Add(float64(n))
}

// AddGenerated counts addresses produced without a search.
func (m *Metrics) AddGenerated(n int) {
	if m == nil {
		return
	}
	m.generated.Add(float64(n))
}

// JobStarted marks a search as active.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.activeJobs.Inc()
}

// JobFinished records the outcome of a search started with JobStarted.
func (m *Metrics) JobFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeJobs.Dec()
	m.jobs.WithLabelValues(outcome).Inc()
	m.jobDurations.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SessionOpened counts a new WebSocket session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed counts a closed WebSocket session.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
