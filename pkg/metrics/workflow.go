package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
)

const outcomeSuccess = "success"

// WorkflowMetrics records the outcome of each state-changing workflow. A nil
// *WorkflowMetrics is valid and records nothing.
type WorkflowMetrics struct {
	transitions   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifyFailure *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow collectors on reg.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Workflow invocations by outcome.",
	}, []string{"workflow", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_duration_seconds",
		Help:    "Workflow latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow"})
	notifyFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Best-effort notifications that could not be stored or published.",
	}, []string{"stage"})
	reg.MustRegister(transitions, duration, notifyFailure)
	return &WorkflowMetrics{
		transitions:   transitions,
		duration:      duration,
		notifyFailure: notifyFailure,
	}
}

// Observe records one workflow run. The outcome label is "success" or the
// lower-cased error code.
func (m *WorkflowMetrics) Observe(workflow string, started time.Time, err error) {
	if m == nil || m.transitions == nil {
		return
	}
	workflow = normalizeLabel(workflow)
	m.transitions.WithLabelValues(workflow, outcome(err)).Inc()
	m.duration.WithLabelValues(workflow).Observe(time.Since(started).Seconds())
}

// IncNotificationFailure counts a dropped notification at stage ("store",
// "publish" or "panic").
func (m *WorkflowMetrics) IncNotificationFailure(stage string) {
	if m == nil || m.notifyFailure == nil {
		return
	}
	m.notifyFailure.WithLabelValues(normalizeLabel(stage)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return strings.ToLower(string(pkgerrors.CodeOf(err)))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
