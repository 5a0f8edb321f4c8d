package main

import (
	"time"

	"github.com/opst/drydock/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics counts handled jobs.
type JobMetrics struct {
	handled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewJobMetrics creates metrics and registers them to reg.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		handled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drydock",
				Name:      "jobs_total",
				Help:      "handled jobs by kind and outcome (done, dropped or queued for retry)",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "drydock",
				Name:      "job_duration_seconds",
				Help:      "time spent by job handlers",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.handled, m.duration)
	return m
}

func (m *JobMetrics) Observe(kind string, outcome domain.JobOutcome, took time.Duration) {
	m.handled.WithLabelValues(kind, outcome.Status().String()).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}
