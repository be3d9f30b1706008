// Package metrics registers the engine's Prometheus collectors on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askdata",
		Name:      "queries_total",
		Help:      "Questions handled by the query engine, by result status.",
	}, []string{"status"})

	PlannerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askdata",
		Name:      "planner_outcomes_total",
		Help:      "Planner runs by outcome kind.",
	}, []string{"outcome"})

	PlannerIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askdata",
		Name:      "planner_iterations",
		Help:      "Reasoning-service calls per planner run.",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askdata",
		Name:      "tool_calls_total",
		Help:      "Planner tool invocations by tool and result.",
	}, []string{"tool", "result"})

	ResolverFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "askdata",
		Name:      "resolver_lookup_failures_total",
		Help:      "Name-directory lookups that failed; affected identifiers were left unresolved.",
	})

	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "askdata",
		Name:      "sessions_in_memory",
		Help:      "Sessions currently held by the in-memory store.",
	})
)
