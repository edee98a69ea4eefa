package goldenpath

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	// ErrCircuitOpen is returned by a Breaker when it fast-fails a call without
	// invoking the wrapped operation. It is not in the default retryable set so
	// a retry loop wrapping an open breaker aborts rather than spinning.
	ErrCircuitOpen = errors.New("circuit breaker is open", j.C("ERR_8f3c41d2a97be015"))

	// ErrAttemptTimeout is returned when a single attempt exceeds its configured
	// attempt timeout. The message intentionally contains "timeout" so that the
	// default retryable matchers classify it as transient.
	ErrAttemptTimeout = errors.New("attempt timeout exceeded", j.C("ERR_2b9a6e04c1d7f38a"))

	// ErrPipelineAborted is returned when a pipeline failed terminally and its
	// fallback also failed. Both causes are attached as metadata.
	ErrPipelineAborted = errors.New("pipeline aborted and fallback failed", j.C("ERR_d41f79b20c6e853b"))

	// ErrCorrelationNotFound is returned by correlation stores when no target is
	// mapped for the given key.
	ErrCorrelationNotFound = errors.New("correlation target not found", j.C("ERR_67e2a84fd09c31b5"))

	// ErrInvalidInput is returned by pipeline validation steps when the inbound
	// payload is missing required fields. It never matches a retryable pattern.
	ErrInvalidInput = errors.New("invalid pipeline input", j.C("ERR_0c58fae6912d47bc"))
)
