package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	pipelineName = "pipeline_name"
	stepName     = "step_name"
	breakerName  = "breaker_name"
	status       = "status"
)

var (
	// PipelineRuns is the number of pipeline runs by terminal status
	// (completed, fallback_executed, failed).
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "goldenpath_pipeline_runs_total",
		Help: "Number of pipeline runs by terminal status",
	}, []string{pipelineName, status})

	// StepLatency is how long a step takes including retries and backoff
	StepLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goldenpath_step_latency_seconds",
		Help:    "Step execution latency in seconds",
		Buckets: []float64{0.01, 0.1, 1, 5, 10, 60, 300},
	}, []string{pipelineName, stepName})

	// StepErrors is the number of terminal step errors
	StepErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "goldenpath_step_error_count",
		Help: "Number of terminal step errors",
	}, []string{pipelineName, stepName})

	// RetryAttempts is the number of attempts issued by the retry executor
	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "goldenpath_retry_attempts_total",
		Help: "Number of attempts issued by the retry executor",
	}, []string{pipelineName, stepName})

	// BreakerStates reflects the current state of each named circuit breaker
	// (0 = closed, 1 = open, 2 = half open).
	BreakerStates = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "goldenpath_breaker_states",
		Help: "The current state of each named circuit breaker",
	}, []string{breakerName})

	// BreakerFastFails is the number of calls rejected by an open breaker
	// without invoking the wrapped operation.
	BreakerFastFails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "goldenpath_breaker_fast_fail_count",
		Help: "Number of calls rejected by an open circuit breaker",
	}, []string{breakerName})
)

func init() {
	prometheus.MustRegister(
		PipelineRuns,
		StepLatency,
		StepErrors,
		RetryAttempts,
		BreakerStates,
		BreakerFastFails,
	)
}

func Reset() {
	PipelineRuns.Reset()
	StepLatency.Reset()
	StepErrors.Reset()
	RetryAttempts.Reset()
	BreakerStates.Reset()
	BreakerFastFails.Reset()
}
