// Package metrics provides the Prometheus collectors the registry and
// service layer instrument themselves with.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus collectors used across the job-lifecycle
// engine. A nil *Metrics is valid and all of its methods become no-ops, so
// instrumentation is optional for callers that have not registered a
// prometheus.Registerer (e.g. unit tests).
type Metrics struct {
	jobsSubmitted prometheus.Counter
	jobsDeclined  *prometheus.CounterVec
	jobsActive    prometheus.Gauge
	jobDuration   *prometheus.HistogramVec
	workerDeaths  prometheus.Counter
}

// New creates a Metrics instance and registers its collectors with reg. If
// reg is nil, the returned Metrics still functions but records into
// unregistered collectors (useful for tests that want the increments
// without a global registry).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by SubmitJob.",
		}),
		jobsDeclined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_declined_total",
			Help:      "Total number of requests declined, by operation.",
		}, []string{"operation"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Current number of jobs tracked in the registry.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Observed wall-clock duration of terminal jobs, by final status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		workerDeaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_deaths_total",
			Help:      "Total number of worker processes observed dead without a result.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.jobsSubmitted,
			m.jobsDeclined,
			m.jobsActive,
			m.jobDuration,
			m.workerDeaths,
		)
	}

	return m
}

const namespace = "slaeworker"

// JobSubmitted records a successfully accepted SubmitJob call.
func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmitted.Inc()
}

// JobDeclined records a DECLINED response for the named operation.
func (m *Metrics) JobDeclined(operation string) {
	if m == nil {
		return
	}
	m.jobsDeclined.WithLabelValues(operation).Inc()
}

// SetActive sets the current count of registry-tracked jobs.
func (m *Metrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.jobsActive.Set(float64(n))
}

// JobTerminal records a job's end-to-end duration under its final status.
func (m *Metrics) JobTerminal(status string, seconds float64) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(status).Observe(seconds)
}

// WorkerDied records a worker observed dead without sending a result.
func (m *Metrics) WorkerDied() {
	if m == nil {
		return
	}
	m.workerDeaths.Inc()
}
