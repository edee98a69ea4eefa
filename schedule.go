package goldenpath

import (
	"context"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/robfig/cron/v3"
	"k8s.io/utils/clock"
)

// Schedule triggers the pipeline at the intervals described by the cron spec
// until ctx is cancelled. next produces the input for each triggered run.
// Schedule is a blocking call; run failures are reflected in their own results
// and logs and do not stop the schedule. It returns on an invalid spec or on
// ctx cancellation.
func Schedule[Type any](ctx context.Context, p *Pipeline[Type], spec string, next func() *Type) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Wrap(err, "invalid cron spec", j.KV("spec", spec))
	}

	for {
		nextRun := schedule.Next(p.opts.clock.Now())

		err := waitUntil(ctx, p.opts.clock, nextRun)
		if err != nil {
			return err
		}

		_, err = p.Run(ctx, next())
		if err != nil {
			// NoReturnErr: Scheduled runs are fire and forget - the failure is
			// already logged with its correlation id by the run itself.
			continue
		}
	}
}

func waitUntil(ctx context.Context, cl clock.Clock, until time.Time) error {
	timeDiffAsDuration := until.Sub(cl.Now())
	if timeDiffAsDuration <= 0 {
		return nil
	}

	t := cl.NewTimer(timeDiffAsDuration)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
