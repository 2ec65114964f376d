// Package metrics registers the Prometheus instruments for the dispatch
// pipeline. Everything is counter-shaped: outcomes, not timings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// DispatchTotal counts dispatch attempts by outcome:
	// claimed, duplicate, publish_error.
	DispatchTotal *prometheus.CounterVec

	// DeliveryResultTotal counts recorded delivery outcomes per channel and
	// status.
	DeliveryResultTotal *prometheus.CounterVec

	// JobTransitionTotal counts job status transitions.
	JobTransitionTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_requests_total",
				Help: "Total number of dispatch attempts by outcome",
			},
			[]string{"event_type", "outcome"},
		),
		DeliveryResultTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_delivery_results_total",
				Help: "Total number of recorded delivery outcomes per channel and status",
			},
			[]string{"channel", "status"},
		),
		JobTransitionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_transitions_total",
				Help: "Total number of job status transitions",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.DispatchTotal,
		m.DeliveryResultTotal,
		m.JobTransitionTotal,
	)

	return m
}

// NewUnregistered returns metrics backed by a throwaway registry, for code
// paths (and tests) that run without a metrics endpoint.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
