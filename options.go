package goldenpath

import (
	"os"
	"time"

	"k8s.io/utils/clock"

	ilogger "github.com/relaykit/goldenpath/internal/logger"
)

// options provides a common configuration structure for pipelines. All fields
// are fixed at Build time and never mutated at runtime.
type options struct {
	clock clock.Clock
	log   Logger

	debugMode bool

	breakers      *BreakerRegistry
	retryConfig   RetryConfig
	breakerConfig BreakerConfig

	enableRetry    bool
	enableBreaker  bool
	enableFallback bool

	correlationPrefix string
}

func defaultBuildOptions() options {
	return options{
		clock:          clock.RealClock{},
		log:            ilogger.New(os.Stderr),
		breakers:       DefaultBreakerRegistry(),
		retryConfig:    DefaultRetryConfig(),
		breakerConfig:  defaultBreakerConfig(),
		enableRetry:    true,
		enableBreaker:  true,
		enableFallback: true,
	}
}

type BuildOption func(o *options)

// WithClock replaces the clock the pipeline uses for correlation timestamps,
// step latency, attempt timeouts, and backoff sleeps. Intended for tests.
func WithClock(c clock.Clock) BuildOption {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger replaces the default JSON logger.
func WithLogger(l Logger) BuildOption {
	return func(o *options) {
		o.log = l
	}
}

// WithDebugMode enables debug logs for the pipeline.
func WithDebugMode() BuildOption {
	return func(o *options) {
		o.debugMode = true
	}
}

// WithBreakers replaces the process-global breaker registry. Pipelines built
// with the same registry share breaker state per step name.
func WithBreakers(r *BreakerRegistry) BuildOption {
	return func(o *options) {
		o.breakers = r
	}
}

// WithRetryConfig overrides the retry tuning shared by all of the pipeline's
// steps.
func WithRetryConfig(c RetryConfig) BuildOption {
	return func(o *options) {
		o.retryConfig = c
	}
}

// WithBreakerConfig overrides the tuning used when the pipeline's step
// breakers are first created. An already-registered breaker keeps the config
// it was created with.
func WithBreakerConfig(c BreakerConfig) BuildOption {
	return func(o *options) {
		o.breakerConfig = c
	}
}

// WithAttemptTimeout overrides the per-attempt timeout of the pipeline's retry
// config.
func WithAttemptTimeout(d time.Duration) BuildOption {
	return func(o *options) {
		o.retryConfig.AttemptTimeout = d
	}
}

// WithoutRetry disables the retry executor: every step operation is invoked
// exactly once.
func WithoutRetry() BuildOption {
	return func(o *options) {
		o.enableRetry = false
	}
}

// WithoutCircuitBreaker disables breaker wrapping for the pipeline's steps.
func WithoutCircuitBreaker() BuildOption {
	return func(o *options) {
		o.enableBreaker = false
	}
}

// WithoutFallback disables the pipeline's fallback even when one is defined,
// so terminal step errors propagate to the caller.
func WithoutFallback() BuildOption {
	return func(o *options) {
		o.enableFallback = false
	}
}

// WithCorrelationPrefix overrides the correlation id prefix, which defaults to
// the pipeline name.
func WithCorrelationPrefix(prefix string) BuildOption {
	return func(o *options) {
		o.correlationPrefix = prefix
	}
}
