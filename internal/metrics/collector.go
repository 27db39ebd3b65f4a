// internal/metrics/collector.go
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FairForge/storm/internal/loadtest"
)

const outcomeSuccess = "success"

// Collector records per-submission metrics for a run on its own registry,
// so several runs in one process never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	rejectionsByStatus *prometheus.CounterVec
	inFlight           prometheus.Gauge
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storm_submissions_total",
				Help: "Total number of completed submissions",
			},
			[]string{"mode", "outcome", "kind"},
		),
		submissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storm_submission_duration_seconds",
				Help:    "Submission latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"mode"},
		),
		rejectionsByStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storm_rejections_total",
				Help: "Submissions rejected by the API, by HTTP status",
			},
			[]string{"status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storm_submissions_in_flight",
				Help: "Number of submissions currently executing",
			},
		),
	}

	c.registry.MustRegister(
		c.submissionsTotal,
		c.submissionDuration,
		c.rejectionsByStatus,
		c.inFlight,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the underlying registry for serving.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// JobStarted implements loadtest.Recorder.
func (c *Collector) JobStarted(job loadtest.Job) {
	c.inFlight.Inc()
}

// JobFinished implements loadtest.Recorder.
func (c *Collector) JobFinished(job loadtest.Job, result loadtest.Result) {
	c.inFlight.Dec()

	mode := job.Mode.String()
	if result.Succeeded() {
		c.submissionsTotal.WithLabelValues(mode, outcomeSuccess, "").Inc()
		c.submissionDuration.WithLabelValues(mode).Observe(result.Elapsed.Seconds())
		return
	}

	c.submissionsTotal.WithLabelValues(mode, "failure", string(result.Failure.Kind)).Inc()
	if result.Failure.StatusCode != 0 {
		c.rejectionsByStatus.WithLabelValues(statusClass(result.Failure.StatusCode)).Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status == 401 || status == 403 || status == 429:
		return strconv.Itoa(status)
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
