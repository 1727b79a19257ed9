// Package metrics defines the Prometheus instrumentation for the sourcing
// analysis engine. All collectors are registered on the default registry
// via promauto and exposed through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_workflows_started_total",
			Help: "Total number of sourcing analyses started",
		},
		[]string{"priority"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_workflows_completed_total",
			Help: "Total number of sourcing analyses completed by final status",
		},
		[]string{"status"},
	)

	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "magellan_workflow_duration_seconds",
			Help:    "End-to-end sourcing analysis duration",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "magellan_phase_duration_seconds",
			Help:    "Duration of each pipeline phase",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)

	PhaseBranches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_phase_branches_total",
			Help: "Fan-out branches executed per phase by outcome",
		},
		[]string{"phase", "status"},
	)

	// Provider gateway metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_provider_calls_total",
			Help: "Underlying capability provider calls by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "magellan_provider_call_duration_seconds",
			Help:    "Latency of capability provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_provider_retries_total",
			Help: "Retry attempts against capability providers",
		},
		[]string{"provider"},
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_degraded_responses_total",
			Help: "Invocations that exhausted retries and returned a degraded payload",
		},
		[]string{"provider"},
	)

	// Gateway cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_cache_hits_total",
			Help: "Gateway cache hits by tier (local, redis)",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magellan_cache_misses_total",
			Help: "Gateway cache misses",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "magellan_cache_size",
			Help: "Entries currently held in the local gateway cache",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magellan_cache_evictions_total",
			Help: "Entries evicted from the local gateway cache",
		},
	)

	InflightDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magellan_inflight_deduped_total",
			Help: "Invocations coalesced onto an identical in-flight call",
		},
	)

	// Agent metrics
	AgentExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_agent_executions_total",
			Help: "Agent runs by role and final status",
		},
		[]string{"role", "status"},
	)

	AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "magellan_agent_duration_seconds",
			Help:    "Agent execution duration by role",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"role"},
	)

	// Extraction metrics
	ScoresExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_scores_extracted_total",
			Help: "Numeric scores recovered from provider text by extraction method",
		},
		[]string{"method"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "magellan_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_circuit_breaker_trips_total",
			Help: "Circuit breaker transitions to open per provider",
		},
		[]string{"provider"},
	)

	// Streaming metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magellan_events_published_total",
			Help: "Workflow progress events published by type",
		},
		[]string{"type"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "magellan_event_subscribers",
			Help: "Currently connected progress event subscribers",
		},
	)
)

// RecordProviderCall tracks one underlying provider call.
func RecordProviderCall(provider, status string, durationSeconds float64) {
	ProviderCalls.WithLabelValues(provider, status).Inc()
	ProviderCallDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordPhase tracks a completed pipeline phase.
func RecordPhase(phase string, durationSeconds float64) {
	PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordAgent tracks one agent run.
func RecordAgent(role, status string, durationSeconds float64) {
	AgentExecutions.WithLabelValues(role, status).Inc()
	AgentDuration.WithLabelValues(role).Observe(durationSeconds)
}
