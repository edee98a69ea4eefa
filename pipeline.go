package goldenpath

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/relaykit/goldenpath/internal/metrics"
)

// StepFunc is one named unit of work within a pipeline. It mutates the run's
// Object to hand data to subsequent steps. Errors are classified by the retry
// executor: transient ones are retried per policy, everything else fails the
// step immediately.
type StepFunc[Type any] func(ctx context.Context, r *Run[Type]) error

// FallbackFunc is the best-effort alternate action executed when a step fails
// terminally. cause is the terminal step error.
type FallbackFunc[Type any] func(ctx context.Context, r *Run[Type], cause error) error

type step[Type any] struct {
	name string
	fn   StepFunc[Type]
}

// Pipeline is an ordered list of named steps executed for one logical business
// workflow. Construct one via NewBuilder; a built pipeline is immutable and
// safe for concurrent Run calls.
type Pipeline[Type any] struct {
	name     string
	steps    []step[Type]
	fallback FallbackFunc[Type]
	opts     options
	logger   *logger
}

func (p *Pipeline[Type]) Name() string {
	return p.name
}

// StepNames returns the declared step order.
func (p *Pipeline[Type]) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		names = append(names, s.name)
	}

	return names
}

// Run executes the declared steps strictly in order, threading input through
// them. On terminal step failure the fallback runs if enabled and defined;
// a successful fallback yields a fallback_executed result, a failed fallback
// yields ErrPipelineAborted carrying both causes, and with no fallback the
// step's error is returned unchanged. Side effects of steps that already
// completed are never rolled back.
//
// A non-nil error is always accompanied by a failed-status Result so callers
// keep the correlation id for diagnostics.
func (p *Pipeline[Type]) Run(ctx context.Context, input *Type) (Result[Type], error) {
	t0 := p.opts.clock.Now()

	r := &Run[Type]{
		RunID:         uuid.New().String(),
		CorrelationID: correlationID(p.opts.clock, p.opts.correlationPrefix, input),
		StartedAt:     t0,
		Object:        input,
	}

	p.logger.maybeDebug(ctx, "pipeline run started", MKV{
		"pipeline":       p.name,
		"run_id":         r.RunID,
		"correlation_id": r.CorrelationID,
	})

	completed := make([]string, 0, len(p.steps))

	for _, s := range p.steps {
		err := p.executeStep(ctx, s, r)
		if err != nil {
			return p.failRun(ctx, r, t0, completed, err)
		}

		completed = append(completed, s.name)
	}

	res := Result[Type]{
		CorrelationID:  r.CorrelationID,
		RunID:          r.RunID,
		Status:         StatusCompleted,
		Duration:       p.opts.clock.Since(t0),
		CompletedSteps: completed,
		Object:         r.Object,
	}

	metrics.PipelineRuns.WithLabelValues(p.name, res.Status.String()).Inc()

	p.logger.maybeDebug(ctx, "pipeline run completed", MKV{
		"pipeline":       p.name,
		"run_id":         r.RunID,
		"correlation_id": r.CorrelationID,
		"duration":       res.Duration.String(),
	})

	return res, nil
}

// failRun handles the terminal failure of a step: it attempts the fallback
// when one is enabled and defined, otherwise propagates cause unchanged.
// Steps after the failed one never execute.
func (p *Pipeline[Type]) failRun(
	ctx context.Context,
	r *Run[Type],
	t0 time.Time,
	completed []string,
	cause error,
) (Result[Type], error) {
	p.logger.Error(ctx, errors.Wrap(cause, "pipeline step failed terminally", j.MKV{
		"pipeline":       p.name,
		"run_id":         r.RunID,
		"correlation_id": r.CorrelationID,
	}))

	if p.opts.enableFallback && p.fallback != nil {
		ferr := p.fallback(ctx, r, cause)
		if ferr != nil {
			// The fallback's own failure is combined with the original cause
			// rather than silently discarded.
			res := p.terminalResult(r, t0, completed, StatusFailed)

			return res, errors.Wrap(ErrPipelineAborted, "", j.MKV{
				"pipeline":       p.name,
				"correlation_id": r.CorrelationID,
				"original_error": cause.Error(),
				"fallback_error": ferr.Error(),
			})
		}

		res := p.terminalResult(r, t0, completed, StatusFallbackExecuted)
		res.OriginalErr = cause.Error()

		p.logger.maybeDebug(ctx, "pipeline fallback executed", MKV{
			"pipeline":       p.name,
			"run_id":         r.RunID,
			"correlation_id": r.CorrelationID,
			"original_error": cause.Error(),
		})

		return res, nil
	}

	return p.terminalResult(r, t0, completed, StatusFailed), cause
}

func (p *Pipeline[Type]) terminalResult(
	r *Run[Type],
	t0 time.Time,
	completed []string,
	status Status,
) Result[Type] {
	metrics.PipelineRuns.WithLabelValues(p.name, status.String()).Inc()

	return Result[Type]{
		CorrelationID:  r.CorrelationID,
		RunID:          r.RunID,
		Status:         status,
		Duration:       p.opts.clock.Since(t0),
		CompletedSteps: completed,
		Object:         r.Object,
	}
}
