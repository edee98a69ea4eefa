package goldenpath

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"k8s.io/utils/clock"

	"github.com/relaykit/goldenpath/internal/metrics"
)

const (
	defaultMaxAttempts       = 3
	defaultBaseDelay         = time.Second
	defaultMaxDelay          = 10 * time.Second
	defaultBackoffMultiplier = 2.0
	defaultAttemptTimeout    = 30 * time.Second
)

// defaultRetryableErrors matches the transient failure shapes of the external
// collaborators: connection resets, timeouts, and DNS lookup failures.
// Matching is a case-insensitive substring test against the error string.
var defaultRetryableErrors = []string{
	"econnreset",
	"etimedout",
	"enotfound",
	"network error",
	"timeout",
}

// DefaultRetryableErrors returns a copy of the default transient error
// matchers.
func DefaultRetryableErrors() []string {
	return append([]string(nil), defaultRetryableErrors...)
}

// RetryConfig tunes the retry executor. The zero value of any field falls
// back to the package default, so callers only override what they need.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. The delay before attempt
	// k+1 is BaseDelay * BackoffMultiplier^(k-1), capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// BackoffMultiplier must be greater than 1.
	BackoffMultiplier float64

	// RetryableErrors are case-insensitive substrings that classify an error
	// as transient. Any error not matching one of them fails the call
	// immediately.
	RetryableErrors []string

	// AttemptTimeout bounds a single attempt. An attempt that exceeds it fails
	// with ErrAttemptTimeout and the in-flight operation is abandoned, not
	// cancelled - its result is discarded when it eventually returns.
	AttemptTimeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       defaultMaxAttempts,
		BaseDelay:         defaultBaseDelay,
		MaxDelay:          defaultMaxDelay,
		BackoffMultiplier: defaultBackoffMultiplier,
		RetryableErrors:   DefaultRetryableErrors(),
		AttemptTimeout:    defaultAttemptTimeout,
	}
}

func (c RetryConfig) normalise() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaultMaxAttempts
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}

	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = defaultBackoffMultiplier
	}

	if c.RetryableErrors == nil {
		c.RetryableErrors = defaultRetryableErrors
	}

	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaultAttemptTimeout
	}

	return c
}

// ExecuteWithRetry invokes op up to config.MaxAttempts times with capped
// exponential backoff between attempts. The label identifies the operation in
// logs and metrics. The returned error is exactly the error of the last
// attempt, never an aggregate.
func ExecuteWithRetry(
	ctx context.Context,
	label string,
	config RetryConfig,
	op func(ctx context.Context) error,
) error {
	return executeWithRetry(ctx, clock.RealClock{}, &logger{}, "", label, config, op)
}

func executeWithRetry(
	ctx context.Context,
	cl clock.Clock,
	lg *logger,
	pipelineName string,
	label string,
	config RetryConfig,
	op func(ctx context.Context) error,
) error {
	config = config.normalise()

	for attempt := 1; ; attempt++ {
		metrics.RetryAttempts.WithLabelValues(pipelineName, label).Inc()

		err := attemptOnce(ctx, cl, config.AttemptTimeout, op)
		if err == nil {
			return nil
		}

		// Non-retryable errors and exhausted attempts surface immediately with
		// no further delay.
		if attempt >= config.MaxAttempts || !retryableError(err, config.RetryableErrors) {
			return err
		}

		delay := backoffDelay(config, attempt)

		lg.maybeDebug(ctx, "retrying after transient error", MKV{
			"label":   label,
			"attempt": strconv.Itoa(attempt),
			"delay":   delay.String(),
			"error":   err.Error(),
		})

		if werr := waitFor(ctx, cl, delay); werr != nil {
			return werr
		}
	}
}

// attemptOnce races op against the attempt timeout. The op goroutine writes
// into a buffered channel so a timed out attempt does not leak a blocked
// goroutine when it eventually returns.
func attemptOnce(
	ctx context.Context,
	cl clock.Clock,
	timeout time.Duration,
	op func(ctx context.Context) error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	t := cl.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return errors.Wrap(ErrAttemptTimeout, "", j.KV("attempt_timeout", timeout.String()))
	}
}

func retryableError(err error, matchers []string) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range matchers {
		if strings.Contains(msg, strings.ToLower(m)) {
			return true
		}
	}

	return false
}

// backoffDelay returns the delay after the attempt-th failure:
// BaseDelay * BackoffMultiplier^(attempt-1), capped at MaxDelay.
func backoffDelay(config RetryConfig, attempt int) time.Duration {
	d := float64(config.BaseDelay) * math.Pow(config.BackoffMultiplier, float64(attempt-1))
	if d > float64(config.MaxDelay) {
		return config.MaxDelay
	}

	return time.Duration(d)
}

func waitFor(ctx context.Context, cl clock.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := cl.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
