// Package metrics exposes batch run counters in Prometheus format, plus a
// small HTTP surface for watching a long run from outside.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/storenstra/facebatch/pkg/models"
)

// Collector holds the Prometheus instruments for one run. It uses its own
// registry so repeated runs (and tests) never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	jobsDiscovered prometheus.Counter
	jobsSucceeded  prometheus.Counter
	jobsFailed     prometheus.Counter
	failuresByKind *prometheus.CounterVec
	jobDuration    prometheus.Histogram
	jobsInFlight   prometheus.Gauge
}

// NewCollector creates and registers the run's instruments.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facebatch_jobs_discovered_total",
			Help: "Total processable media items discovered by the inventory scan",
		}),
		jobsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facebatch_jobs_succeeded_total",
			Help: "Total jobs that produced an output file",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facebatch_jobs_failed_total",
			Help: "Total jobs that ended in a failed state",
		}),
		failuresByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facebatch_failures_total",
			Help: "Failed jobs by normalized failure kind",
		}, []string{"kind"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "facebatch_job_duration_seconds",
			Help: "Wall time per job from dispatch to terminal state",
			// Face swaps run seconds to minutes, not milliseconds.
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facebatch_jobs_in_flight",
			Help: "Jobs currently running against the inference engine",
		}),
	}

	c.registry.MustRegister(
		c.jobsDiscovered,
		c.jobsSucceeded,
		c.jobsFailed,
		c.failuresByKind,
		c.jobDuration,
		c.jobsInFlight,
	)

	// Pre-populate kind labels so dashboards see zeros, not gaps.
	for _, kind := range models.FailureKinds() {
		c.failuresByKind.WithLabelValues(string(kind))
	}

	return c
}

// Registry exposes the run registry for the HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordDiscovered records the inventory size.
func (c *Collector) RecordDiscovered(n int) {
	c.jobsDiscovered.Add(float64(n))
}

// RecordStart marks one job as in flight.
func (c *Collector) RecordStart() {
	c.jobsInFlight.Inc()
}

// RecordResult folds one terminal job result into the instruments.
func (c *Collector) RecordResult(result models.JobResult) {
	c.jobsInFlight.Dec()
	c.jobDuration.Observe(result.Duration.Seconds())
	if result.Succeeded() {
		c.jobsSucceeded.Inc()
		return
	}
	c.jobsFailed.Inc()
	c.failuresByKind.WithLabelValues(string(result.Failure)).Inc()
}
