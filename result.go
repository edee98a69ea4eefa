package goldenpath

import (
	"fmt"
	"time"
)

type Status int

const (
	StatusUnknown Status = 0
	// StatusCompleted means every declared step ran to completion.
	StatusCompleted Status = 1
	// StatusFallbackExecuted means a step failed terminally but the pipeline's
	// fallback succeeded. The terminal error is kept in Result.OriginalErr.
	StatusFallbackExecuted Status = 2
	// StatusFailed means a step failed terminally with no successful fallback.
	StatusFailed Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFallbackExecuted:
		return "fallback_executed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Result is the terminal outcome of one pipeline run. A failed run returns a
// Result alongside the error so callers keep the correlation id and the
// completed-step prefix for diagnostics; the error remains authoritative.
type Result[Type any] struct {
	CorrelationID string
	RunID         string
	Status        Status
	Duration      time.Duration

	// CompletedSteps lists the steps that ran to completion, always a strict
	// prefix of the pipeline's declared step order.
	CompletedSteps []string

	// Object is the payload as left by the last executed step.
	Object *Type

	// OriginalErr carries the terminal step error message when the fallback
	// executed. Empty otherwise.
	OriginalErr string
}
