package goldenpath

import (
	"context"

	"github.com/relaykit/goldenpath/internal/metrics"
)

// executeStep runs one step through the configured resilience layers. The
// composition order is fixed: retry wraps the breaker, never the reverse, so
// every attempt re-consults the shared breaker state. If the breaker opens
// mid-loop the resulting ErrCircuitOpen is not retryable and the loop aborts
// instead of retrying against an open breaker.
func (p *Pipeline[Type]) executeStep(ctx context.Context, s step[Type], r *Run[Type]) error {
	t0 := p.opts.clock.Now()

	op := func(ctx context.Context) error {
		return s.fn(ctx, r)
	}

	if p.opts.enableBreaker {
		br := p.opts.breakers.GetOrCreate(s.name, p.opts.breakerConfig)
		inner := op
		op = func(ctx context.Context) error {
			return br.Execute(ctx, inner)
		}
	}

	var err error
	if p.opts.enableRetry {
		err = executeWithRetry(ctx, p.opts.clock, p.logger, p.name, s.name, p.opts.retryConfig, op)
	} else {
		// Retry disabled: the (possibly breaker-wrapped) operation is invoked
		// exactly once, with no attempt timeout race.
		err = op(ctx)
	}

	metrics.StepLatency.WithLabelValues(p.name, s.name).Observe(p.opts.clock.Since(t0).Seconds())

	if err != nil {
		metrics.StepErrors.WithLabelValues(p.name, s.name).Inc()
		return err
	}

	p.logger.maybeDebug(ctx, "step completed", MKV{
		"pipeline":       p.name,
		"step":           s.name,
		"run_id":         r.RunID,
		"correlation_id": r.CorrelationID,
		"duration":       p.opts.clock.Since(t0).String(),
	})

	return nil
}
