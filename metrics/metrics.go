// Package metrics exposes Prometheus instrumentation for the runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of sessions currently running.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lotus",
		Name:      "active_sessions",
		Help:      "Number of sessions currently running.",
	})

	// Iterations counts loop iterations across all sessions.
	Iterations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotus",
		Name:      "loop_iterations_total",
		Help:      "Total loop iterations executed.",
	})

	// LoopGuardTrips counts sessions aborted by the infinite-loop guard.
	LoopGuardTrips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotus",
		Name:      "loop_guard_trips_total",
		Help:      "Sessions terminated by the iteration ceiling.",
	})

	// ExternalCallFailures counts failed oracle and network calls that
	// were surfaced to scripts as failure indicators.
	ExternalCallFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotus",
		Name:      "external_call_failures_total",
		Help:      "External calls that failed and degraded gracefully.",
	})

	// Transfers counts sessions ended by a transfer action.
	Transfers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotus",
		Name:      "transfers_total",
		Help:      "Sessions handed off via transfer.",
	})
)
