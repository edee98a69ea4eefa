package goldenpath

import "context"

// CorrelationStore maps a pipeline-domain id (e.g. "pr123") to a messaging
// target identifier. Put is expected to be idempotent per key.
type CorrelationStore interface {
	// Get returns the target mapped to key, or ErrCorrelationNotFound.
	Get(ctx context.Context, key string) (target string, err error)

	// Put stores the key to target mapping along with free-form metadata.
	Put(ctx context.Context, key string, target string, meta map[string]string) error
}

// MessagingGateway delivers content to a messaging target. Delivery is
// at-least-once from the caller's perspective; failures surface as ordinary
// errors subject to the retry and breaker policy.
type MessagingGateway interface {
	Send(ctx context.Context, target string, content string) (messageID string, err error)
}

// ActionResult is the outcome of a remote action execution.
type ActionResult struct {
	Executed bool
	Output   string
}

// RemoteActionExecutor performs a side-effecting action against a remote
// system (e.g. source control). Actions are not idempotent and the pipelines
// do not dedupe or compensate them.
type RemoteActionExecutor interface {
	Execute(ctx context.Context, action string, targetID string, message string) (ActionResult, error)
}

// Notifier sends a best-effort outbound notification (e.g. email).
type Notifier interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// Deps bundles the external collaborators the pipeline catalog is built
// against. All implementations live outside this library; in-memory and
// recording versions ship for tests.
type Deps struct {
	Correlations CorrelationStore
	Messenger    MessagingGateway
	Actions      RemoteActionExecutor
	Notifier     Notifier
}
