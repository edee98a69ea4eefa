package goldenpath

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Recording collaborators for exercising pipelines in tests. Each records the
// calls it received and can be scripted to fail upcoming calls via FailNext.

type SentMessage struct {
	Target    string
	Content   string
	MessageID string
}

// RecordingGateway is an in-memory MessagingGateway.
type RecordingGateway struct {
	mu   sync.Mutex
	sent []SentMessage
	errs []error
}

// FailNext queues errors to be returned by the next Send calls, in order,
// before deliveries succeed again.
func (g *RecordingGateway) FailNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.errs = append(g.errs, errs...)
}

func (g *RecordingGateway) Send(ctx context.Context, target, content string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]

		return "", err
	}

	m := SentMessage{
		Target:    target,
		Content:   content,
		MessageID: uuid.New().String(),
	}
	g.sent = append(g.sent, m)

	return m.MessageID, nil
}

// Sent returns a copy of the delivered messages in order.
func (g *RecordingGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]SentMessage(nil), g.sent...)
}

type SentNotification struct {
	To      string
	Subject string
	Body    string
}

// RecordingNotifier is an in-memory Notifier.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
	errs []error
}

func (n *RecordingNotifier) FailNext(errs ...error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.errs = append(n.errs, errs...)
}

func (n *RecordingNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]

		return err
	}

	n.sent = append(n.sent, SentNotification{
		To:      to,
		Subject: subject,
		Body:    body,
	})

	return nil
}

func (n *RecordingNotifier) Sent() []SentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]SentNotification(nil), n.sent...)
}

type ExecutedAction struct {
	Action   string
	TargetID string
	Message  string
}

// RecordingActions is an in-memory RemoteActionExecutor.
type RecordingActions struct {
	mu       sync.Mutex
	executed []ExecutedAction
	errs     []error
}

func (a *RecordingActions) FailNext(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errs = append(a.errs, errs...)
}

func (a *RecordingActions) Execute(ctx context.Context, action, targetID, message string) (ActionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]

		return ActionResult{}, err
	}

	a.executed = append(a.executed, ExecutedAction{
		Action:   action,
		TargetID: targetID,
		Message:  message,
	})

	return ActionResult{
		Executed: true,
		Output:   fmt.Sprintf("%s %s", action, targetID),
	}, nil
}

func (a *RecordingActions) Executed() []ExecutedAction {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]ExecutedAction(nil), a.executed...)
}

// FlakyOp is an operation that fails a fixed number of times before
// succeeding, for exercising retry and breaker behaviour.
type FlakyOp struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func NewFlakyOp(failures int, err error) *FlakyOp {
	return &FlakyOp{
		failures: failures,
		err:      err,
	}
}

func (f *FlakyOp) Do(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failures {
		return f.err
	}

	return nil
}

// Calls returns how many times Do was invoked.
func (f *FlakyOp) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}
