package goldenpath

import (
	"context"
	"fmt"
	"strings"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// The pipeline catalog: five concrete pipelines relaying events between the
// inbound-email processor, the messaging gateway, and the source-control
// system. They differ only in their step lists and whether a fallback is
// attached - the orchestration machinery is identical.

// InboundEmail is a raw inbound message as relayed by the email processor.
type InboundEmail struct {
	From    string
	Subject string
	Body    string
}

// ReviewRequest accumulates the state of one email_to_review_request run.
type ReviewRequest struct {
	Email InboundEmail

	// ReviewKey is the review reference parsed from the subject, e.g. "pr123".
	ReviewKey string
	// Content is the message composed for the review target.
	Content string
	// Target is the messaging target resolved from the correlation store.
	Target string
	// MessageID is set once the target has been notified.
	MessageID string
	// Persisted is set once the correlation mapping has been stored.
	Persisted bool
	// FallbackNotified is set when the best-effort fallback notification to
	// the sender went out instead of the main path.
	FallbackNotified bool
}

// NewEmailToReviewRequest relays an inbound review-request email to the
// responsible messaging target and persists the correlation for later
// callbacks. Its fallback sends a best-effort plain notification back to the
// sender.
func NewEmailToReviewRequest(d Deps, opts ...BuildOption) *Pipeline[ReviewRequest] {
	b := NewBuilder[ReviewRequest]("email_to_review_request")

	b.AddStep("process-input", func(ctx context.Context, r *Run[ReviewRequest]) error {
		e := r.Object.Email
		if e.From == "" || e.Subject == "" {
			return errors.Wrap(ErrInvalidInput, "inbound email missing sender or subject")
		}

		key := reviewKey(e.Subject)
		if key == "" {
			return errors.Wrap(ErrInvalidInput, "no review reference in subject", j.KV("subject", e.Subject))
		}

		r.Object.ReviewKey = key
		r.Object.Content = fmt.Sprintf("Review requested by %s: %s", e.From, e.Subject)

		return nil
	})

	b.AddStep("resolve-correlation-target", func(ctx context.Context, r *Run[ReviewRequest]) error {
		target, err := d.Correlations.Get(ctx, r.Object.ReviewKey)
		if err != nil {
			return err
		}

		r.Object.Target = target

		return nil
	})

	b.AddStep("notify-target", func(ctx context.Context, r *Run[ReviewRequest]) error {
		id, err := d.Messenger.Send(ctx, r.Object.Target, r.Object.Content)
		if err != nil {
			return err
		}

		r.Object.MessageID = id

		return nil
	})

	b.AddStep("persist-correlation", func(ctx context.Context, r *Run[ReviewRequest]) error {
		err := d.Correlations.Put(ctx, r.Object.ReviewKey, r.Object.Target, map[string]string{
			"message_id": r.Object.MessageID,
			"from":       r.Object.Email.From,
		})
		if err != nil {
			return err
		}

		r.Object.Persisted = true

		return nil
	})

	b.WithFallback(func(ctx context.Context, r *Run[ReviewRequest], cause error) error {
		// Best effort: let the sender know the request could not be relayed.
		err := d.Notifier.Send(ctx,
			r.Object.Email.From,
			"Unable to relay review request",
			fmt.Sprintf("Your review request %q could not be delivered: %s", r.Object.Email.Subject, cause.Error()),
		)
		if err != nil {
			return err
		}

		r.Object.FallbackNotified = true

		return nil
	})

	return b.Build(opts...)
}

// ReviewCallback accumulates the state of one review_callback run: a reviewer
// reacted on the messaging side and the action is executed against source
// control.
type ReviewCallback struct {
	// Action is the remote action to execute, e.g. "approve".
	Action string
	// ReviewKey references the review the callback belongs to, e.g. "pr123".
	ReviewKey string
	// Comment is free-form text relayed with the action.
	Comment string
	// ReplyTarget, when set, receives a reply message after confirmation.
	ReplyTarget string

	// Target is the messaging target resolved from the correlation store.
	Target string
	// Result is the remote action outcome.
	Result ActionResult
	// ConfirmationID is the id of the confirmation message.
	ConfirmationID string
	// ReplyMessageID is set when a reply was sent to ReplyTarget.
	ReplyMessageID string
}

// NewReviewCallback executes a reviewer's callback against the remote system
// and confirms on the messaging side. No fallback: terminal errors propagate.
func NewReviewCallback(d Deps, opts ...BuildOption) *Pipeline[ReviewCallback] {
	b := NewBuilder[ReviewCallback]("review_callback")

	b.AddStep("validate-callback", func(ctx context.Context, r *Run[ReviewCallback]) error {
		if r.Object.Action == "" || r.Object.ReviewKey == "" {
			return errors.Wrap(ErrInvalidInput, "callback missing action or review key")
		}

		return nil
	})

	b.AddStep("lookup-correlation", func(ctx context.Context, r *Run[ReviewCallback]) error {
		target, err := d.Correlations.Get(ctx, r.Object.ReviewKey)
		if err != nil {
			return err
		}

		r.Object.Target = target

		return nil
	})

	b.AddStep("execute-remote-action", func(ctx context.Context, r *Run[ReviewCallback]) error {
		res, err := d.Actions.Execute(ctx, r.Object.Action, r.Object.ReviewKey, r.Object.Comment)
		if err != nil {
			return err
		}

		r.Object.Result = res

		return nil
	})

	b.AddStep("send-confirmation", func(ctx context.Context, r *Run[ReviewCallback]) error {
		id, err := d.Messenger.Send(ctx, r.Object.Target,
			fmt.Sprintf("Action %q executed for %s", r.Object.Action, r.Object.ReviewKey))
		if err != nil {
			return err
		}

		r.Object.ConfirmationID = id

		return nil
	})

	b.AddStep("send-reply", func(ctx context.Context, r *Run[ReviewCallback]) error {
		// Conditional step: only replies when a reply target was captured.
		if r.Object.ReplyTarget == "" {
			return nil
		}

		id, err := d.Messenger.Send(ctx, r.Object.ReplyTarget,
			fmt.Sprintf("Your %q on %s went through", r.Object.Action, r.Object.ReviewKey))
		if err != nil {
			return err
		}

		r.Object.ReplyMessageID = id

		return nil
	})

	return b.Build(opts...)
}

// ReplyDraft accumulates the state of one email_reply_draft run.
type ReplyDraft struct {
	Email InboundEmail

	// Draft is the composed reply body.
	Draft string
	// Sent is set once the reply went out.
	Sent bool
}

// NewEmailReplyDraft drafts and sends a reply to an inbound email.
func NewEmailReplyDraft(d Deps, opts ...BuildOption) *Pipeline[ReplyDraft] {
	b := NewBuilder[ReplyDraft]("email_reply_draft")

	b.AddStep("validate", func(ctx context.Context, r *Run[ReplyDraft]) error {
		if r.Object.Email.From == "" || r.Object.Email.Body == "" {
			return errors.Wrap(ErrInvalidInput, "inbound email missing sender or body")
		}

		return nil
	})

	b.AddStep("draft-content", func(ctx context.Context, r *Run[ReplyDraft]) error {
		r.Object.Draft = fmt.Sprintf("Thanks for your message.\n\n> %s",
			strings.ReplaceAll(r.Object.Email.Body, "\n", "\n> "))

		return nil
	})

	b.AddStep("send-reply", func(ctx context.Context, r *Run[ReplyDraft]) error {
		err := d.Notifier.Send(ctx, r.Object.Email.From, "Re: "+r.Object.Email.Subject, r.Object.Draft)
		if err != nil {
			return err
		}

		r.Object.Sent = true

		return nil
	})

	return b.Build(opts...)
}

// AlertAcknowledgement accumulates the state of one alert_acknowledgement run.
type AlertAcknowledgement struct {
	// AlertID identifies the incident being acknowledged.
	AlertID string
	// AcknowledgedBy is who acknowledged it.
	AcknowledgedBy string
	// Target is the messaging target to confirm on.
	Target string

	// Result is the incident-state update outcome.
	Result ActionResult
	// ConfirmationID is the id of the confirmation message.
	ConfirmationID string
}

// NewAlertAcknowledgement marks an incident acknowledged in the remote system
// and confirms on the messaging side.
func NewAlertAcknowledgement(d Deps, opts ...BuildOption) *Pipeline[AlertAcknowledgement] {
	b := NewBuilder[AlertAcknowledgement]("alert_acknowledgement")

	b.AddStep("validate", func(ctx context.Context, r *Run[AlertAcknowledgement]) error {
		if r.Object.AlertID == "" || r.Object.AcknowledgedBy == "" || r.Object.Target == "" {
			return errors.Wrap(ErrInvalidInput, "acknowledgement missing alert id, acknowledger or target")
		}

		return nil
	})

	b.AddStep("update-incident-state", func(ctx context.Context, r *Run[AlertAcknowledgement]) error {
		res, err := d.Actions.Execute(ctx, "acknowledge", r.Object.AlertID,
			fmt.Sprintf("acknowledged by %s", r.Object.AcknowledgedBy))
		if err != nil {
			return err
		}

		r.Object.Result = res

		return nil
	})

	b.AddStep("send-confirmation", func(ctx context.Context, r *Run[AlertAcknowledgement]) error {
		id, err := d.Messenger.Send(ctx, r.Object.Target,
			fmt.Sprintf("Alert %s acknowledged by %s", r.Object.AlertID, r.Object.AcknowledgedBy))
		if err != nil {
			return err
		}

		r.Object.ConfirmationID = id

		return nil
	})

	return b.Build(opts...)
}

// IssueAssignment accumulates the state of one issue_assignment run.
type IssueAssignment struct {
	// IssueKey identifies the issue being assigned.
	IssueKey string
	// Assignee is who the issue is assigned to.
	Assignee string
	// Target is the messaging target to confirm on.
	Target string

	// Result is the assignment update outcome.
	Result ActionResult
	// ConfirmationID is the id of the confirmation message.
	ConfirmationID string
}

// NewIssueAssignment assigns an issue in the remote system and confirms on the
// messaging side.
func NewIssueAssignment(d Deps, opts ...BuildOption) *Pipeline[IssueAssignment] {
	b := NewBuilder[IssueAssignment]("issue_assignment")

	b.AddStep("validate", func(ctx context.Context, r *Run[IssueAssignment]) error {
		if r.Object.IssueKey == "" || r.Object.Assignee == "" || r.Object.Target == "" {
			return errors.Wrap(ErrInvalidInput, "assignment missing issue key, assignee or target")
		}

		return nil
	})

	b.AddStep("update-assignment-state", func(ctx context.Context, r *Run[IssueAssignment]) error {
		res, err := d.Actions.Execute(ctx, "assign", r.Object.IssueKey,
			fmt.Sprintf("assigned to %s", r.Object.Assignee))
		if err != nil {
			return err
		}

		r.Object.Result = res

		return nil
	})

	b.AddStep("send-confirmation", func(ctx context.Context, r *Run[IssueAssignment]) error {
		id, err := d.Messenger.Send(ctx, r.Object.Target,
			fmt.Sprintf("Issue %s assigned to %s", r.Object.IssueKey, r.Object.Assignee))
		if err != nil {
			return err
		}

		r.Object.ConfirmationID = id

		return nil
	})

	return b.Build(opts...)
}

// reviewKey extracts the first "pr<digits>" token from an email subject,
// ignoring case and surrounding punctuation. Returns "" when no token exists.
func reviewKey(subject string) string {
	for _, f := range strings.Fields(strings.ToLower(subject)) {
		f = strings.Trim(f, "[](){}<>.,:;!?#")
		if !strings.HasPrefix(f, "pr") || len(f) < 3 {
			continue
		}

		digits := f[2:]
		numeric := true
		for _, c := range digits {
			if c < '0' || c > '9' {
				numeric = false
				break
			}
		}

		if numeric {
			return f
		}
	}

	return ""
}
