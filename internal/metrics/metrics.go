package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openresearch_sessions_created_total",
			Help: "Total number of research sessions created",
		},
	)

	SessionsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openresearch_sessions_cancelled_total",
			Help: "Total number of research sessions cancelled",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openresearch_sessions_active",
			Help: "Number of sessions currently held by the registry",
		},
	)

	// Workflow metrics
	StepsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_workflow_steps_total",
			Help: "Total workflow steps executed by pre-step status",
		},
		[]string{"status", "mode"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openresearch_workflow_step_duration_seconds",
			Help:    "Workflow step execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	RecoveryDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_recovery_dispatches_total",
			Help: "Total recovery dispatches by the artifact that drove the jump",
		},
		[]string{"artifact"},
	)

	StallsForced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openresearch_stalls_forced_total",
			Help: "Total forced progressions after a stalled step",
		},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_sessions_completed_total",
			Help: "Total sessions reaching a terminal status",
		},
		[]string{"status"},
	)

	// Collaborator metrics
	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_generation_requests_total",
			Help: "Total LLM generation requests by prompt and outcome",
		},
		[]string{"prompt", "outcome"},
	)

	GenerationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openresearch_generation_latency_seconds",
			Help:    "LLM generation request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_search_requests_total",
			Help: "Total search requests by outcome",
		},
		[]string{"outcome"},
	)

	SearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openresearch_search_latency_seconds",
			Help:    "Search request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	SearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openresearch_search_cache_hits_total",
			Help: "Total search results served from the query cache",
		},
	)

	FallbackContentServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_fallback_content_total",
			Help: "Total fallback content substitutions by reason",
		},
		[]string{"reason"},
	)

	// Report metrics
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_reports_generated_total",
			Help: "Total final reports by output format",
		},
		[]string{"format"},
	)

	OutlineRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openresearch_report_outline_retries_total",
			Help: "Total report regenerations after outline-only detection",
		},
	)

	// Circuit breaker metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openresearch_breaker_state",
			Help: "Circuit breaker state per collaborator (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openresearch_breaker_rejections_total",
			Help: "Requests rejected by an open circuit breaker",
		},
		[]string{"name"},
	)
)
