package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronOutcomeSuccess = "success"
	cronOutcomeFailure = "failure"
	cronOutcomeSkipped = "skipped"
)

// CronJobMetrics records scheduled job runs.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCronJobMetrics registers the cron collectors on reg.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions by outcome.",
	}, []string{"job", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	reg.MustRegister(runs, duration)
	return &CronJobMetrics{runs: runs, duration: duration}
}

// ObserveRun records one job run and its duration.
func (c *CronJobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	result := cronOutcomeSuccess
	if err != nil {
		result = cronOutcomeFailure
	}
	c.runs.WithLabelValues(job, result).Inc()
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncSkipped counts a cycle skipped because another worker held the lock.
func (c *CronJobMetrics) IncSkipped(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), cronOutcomeSkipped).Inc()
}
