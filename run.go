package goldenpath

import "time"

// Run is the accumulated context of one pipeline invocation. Steps receive the
// same Run in declaration order and communicate by mutating Object, so the
// output of one step becomes input to the next. A Run is created at pipeline
// start and discarded at completion; it is never persisted.
type Run[Type any] struct {
	// RunID uniquely identifies this invocation.
	RunID string

	// CorrelationID is a non-cryptographic token grouping the logs and result
	// of this invocation. See correlation.go for its shape.
	CorrelationID string

	// StartedAt is when the run began, on the pipeline clock.
	StartedAt time.Time

	// Object is the typed payload threaded through the steps.
	Object *Type
}
