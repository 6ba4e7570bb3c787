// Package metrics declares the Prometheus collectors of the finance service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AggregationDuration tracks how long one cost aggregation takes.
	// Labels: method (hourly, man_days)
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "worklenz",
			Subsystem: "finance",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of task cost aggregations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AggregatedTasks counts the tasks visited by aggregations.
	AggregatedTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "worklenz",
			Subsystem: "finance",
			Name:      "aggregated_tasks_total",
			Help:      "Total number of tasks folded into cost aggregations",
		},
	)

	// RateDowngrades counts rate lookups that failed and were treated as zero.
	RateDowngrades = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "worklenz",
			Subsystem: "finance",
			Name:      "rate_downgrades_total",
			Help:      "Total number of rate resolutions downgraded to a zero rate after an error",
		},
	)

	// FixedCostUpdates counts fixed cost mutations.
	// Labels: result (success, rejected, error)
	FixedCostUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "worklenz",
			Subsystem: "finance",
			Name:      "fixed_cost_updates_total",
			Help:      "Total number of fixed cost update attempts",
		},
		[]string{"result"},
	)
)
