package goldenpath_test

import (
	"context"
	"errors"
	"testing"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/goldenpath"
	"github.com/relaykit/goldenpath/adapters/memstore"
)

func newTestDeps() (goldenpath.Deps, *memstore.Store, *goldenpath.RecordingGateway, *goldenpath.RecordingNotifier, *goldenpath.RecordingActions) {
	store := memstore.New()
	gateway := &goldenpath.RecordingGateway{}
	notifier := &goldenpath.RecordingNotifier{}
	actions := &goldenpath.RecordingActions{}

	d := goldenpath.Deps{
		Correlations: store,
		Messenger:    gateway,
		Actions:      actions,
		Notifier:     notifier,
	}

	return d, store, gateway, notifier, actions
}

func isolated(extra ...goldenpath.BuildOption) []goldenpath.BuildOption {
	opts := []goldenpath.BuildOption{
		goldenpath.WithBreakers(goldenpath.NewBreakerRegistry()),
		goldenpath.WithRetryConfig(fastRetry(3)),
	}

	return append(opts, extra...)
}

func TestEmailToReviewRequestGoldenPath(t *testing.T) {
	ctx := context.Background()
	d, store, gateway, notifier, _ := newTestDeps()

	require.NoError(t, store.Put(ctx, "pr123", "#reviews", nil))

	p := goldenpath.NewEmailToReviewRequest(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReviewRequest{
		Email: goldenpath.InboundEmail{
			From:    "dev@example.com",
			Subject: "[PR123] please review",
		},
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusCompleted, res.Status)
	require.Equal(t, []string{
		"process-input",
		"resolve-correlation-target",
		"notify-target",
		"persist-correlation",
	}, res.CompletedSteps)
	require.Regexp(t, `^email_to_review_request_\d+_[0-9a-z]+$`, res.CorrelationID)

	require.Equal(t, "pr123", res.Object.ReviewKey)
	require.Equal(t, "#reviews", res.Object.Target)
	require.True(t, res.Object.Persisted)
	require.False(t, res.Object.FallbackNotified)

	sent := gateway.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "#reviews", sent[0].Target)
	require.Contains(t, sent[0].Content, "dev@example.com")
	require.Equal(t, sent[0].MessageID, res.Object.MessageID)

	meta, ok := store.Meta("pr123")
	require.True(t, ok)
	require.Equal(t, res.Object.MessageID, meta["message_id"])
	require.Equal(t, "dev@example.com", meta["from"])

	require.Empty(t, notifier.Sent())
}

func TestEmailToReviewRequestFallback(t *testing.T) {
	ctx := context.Background()
	d, _, gateway, notifier, _ := newTestDeps()

	// No correlation stored for pr777: the lookup fails terminally and the
	// fallback notifies the sender instead.
	p := goldenpath.NewEmailToReviewRequest(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReviewRequest{
		Email: goldenpath.InboundEmail{
			From:    "dev@example.com",
			Subject: "PR777 please review",
		},
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusFallbackExecuted, res.Status)
	require.NotEmpty(t, res.OriginalErr)
	require.Equal(t, []string{"process-input"}, res.CompletedSteps)
	require.True(t, res.Object.FallbackNotified)

	require.Empty(t, gateway.Sent())

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "dev@example.com", sent[0].To)
	require.Equal(t, "Unable to relay review request", sent[0].Subject)
}

func TestEmailToReviewRequestInvalidSubject(t *testing.T) {
	ctx := context.Background()
	d, _, _, _, _ := newTestDeps()

	p := goldenpath.NewEmailToReviewRequest(d, isolated(goldenpath.WithoutFallback())...)

	_, err := p.Run(ctx, &goldenpath.ReviewRequest{
		Email: goldenpath.InboundEmail{
			From:    "dev@example.com",
			Subject: "lunch plans",
		},
	})
	jtest.Assert(t, goldenpath.ErrInvalidInput, err)
}

func TestEmailToReviewRequestRetriesTransientSend(t *testing.T) {
	ctx := context.Background()
	d, store, gateway, _, _ := newTestDeps()

	require.NoError(t, store.Put(ctx, "pr123", "#reviews", nil))

	// First delivery attempt fails transiently; the retry succeeds.
	gateway.FailNext(errors.New("ETIMEDOUT"))

	p := goldenpath.NewEmailToReviewRequest(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReviewRequest{
		Email: goldenpath.InboundEmail{
			From:    "dev@example.com",
			Subject: "PR123 please review",
		},
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusCompleted, res.Status)
	require.Len(t, gateway.Sent(), 1)
}

func TestReviewCallbackGoldenPath(t *testing.T) {
	ctx := context.Background()
	d, store, gateway, _, actions := newTestDeps()

	require.NoError(t, store.Put(ctx, "pr123", "#reviews", nil))

	p := goldenpath.NewReviewCallback(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReviewCallback{
		Action:      "approve",
		ReviewKey:   "pr123",
		Comment:     "LGTM",
		ReplyTarget: "@reviewer",
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusCompleted, res.Status)
	require.Equal(t, []string{
		"validate-callback",
		"lookup-correlation",
		"execute-remote-action",
		"send-confirmation",
		"send-reply",
	}, res.CompletedSteps)

	executed := actions.Executed()
	require.Len(t, executed, 1)
	require.Equal(t, "approve", executed[0].Action)
	require.Equal(t, "pr123", executed[0].TargetID)
	require.Equal(t, "LGTM", executed[0].Message)
	require.True(t, res.Object.Result.Executed)

	sent := gateway.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, "#reviews", sent[0].Target)
	require.Equal(t, sent[0].MessageID, res.Object.ConfirmationID)
	require.Equal(t, "@reviewer", sent[1].Target)
	require.Equal(t, sent[1].MessageID, res.Object.ReplyMessageID)
}

func TestReviewCallbackNoReplyTarget(t *testing.T) {
	ctx := context.Background()
	d, store, gateway, _, _ := newTestDeps()

	require.NoError(t, store.Put(ctx, "pr123", "#reviews", nil))

	p := goldenpath.NewReviewCallback(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReviewCallback{
		Action:    "approve",
		ReviewKey: "pr123",
	})
	require.NoError(t, err)

	// The reply step still ran, it just had nothing to do.
	require.Equal(t, goldenpath.StatusCompleted, res.Status)
	require.Len(t, gateway.Sent(), 1)
	require.Empty(t, res.Object.ReplyMessageID)
}

func TestReviewCallbackMissingCorrelationPropagates(t *testing.T) {
	ctx := context.Background()
	d, _, gateway, _, actions := newTestDeps()

	p := goldenpath.NewReviewCallback(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReviewCallback{
		Action:    "approve",
		ReviewKey: "pr404",
	})

	// No fallback on this pipeline: the lookup error surfaces as is.
	jtest.Assert(t, goldenpath.ErrCorrelationNotFound, err)
	require.Equal(t, goldenpath.StatusFailed, res.Status)
	require.Equal(t, []string{"validate-callback"}, res.CompletedSteps)
	require.Empty(t, gateway.Sent())
	require.Empty(t, actions.Executed())
}

func TestReviewCallbackInvalid(t *testing.T) {
	ctx := context.Background()
	d, _, _, _, _ := newTestDeps()

	p := goldenpath.NewReviewCallback(d, isolated()...)

	_, err := p.Run(ctx, &goldenpath.ReviewCallback{ReviewKey: "pr123"})
	jtest.Assert(t, goldenpath.ErrInvalidInput, err)
}

func TestEmailReplyDraftGoldenPath(t *testing.T) {
	ctx := context.Background()
	d, _, _, notifier, _ := newTestDeps()

	p := goldenpath.NewEmailReplyDraft(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.ReplyDraft{
		Email: goldenpath.InboundEmail{
			From:    "dev@example.com",
			Subject: "Deploy window",
			Body:    "When is the next\ndeploy window?",
		},
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusCompleted, res.Status)
	require.True(t, res.Object.Sent)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "dev@example.com", sent[0].To)
	require.Equal(t, "Re: Deploy window", sent[0].Subject)
	require.Contains(t, sent[0].Body, "> When is the next\n> deploy window?")
}

func TestAlertAcknowledgementGoldenPath(t *testing.T) {
	ctx := context.Background()
	d, _, gateway, _, actions := newTestDeps()

	p := goldenpath.NewAlertAcknowledgement(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.AlertAcknowledgement{
		AlertID:        "alert-42",
		AcknowledgedBy: "oncall@example.com",
		Target:         "#incidents",
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusCompleted, res.Status)

	executed := actions.Executed()
	require.Len(t, executed, 1)
	require.Equal(t, "acknowledge", executed[0].Action)
	require.Equal(t, "alert-42", executed[0].TargetID)

	sent := gateway.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "#incidents", sent[0].Target)
	require.Contains(t, sent[0].Content, "oncall@example.com")
}

func TestIssueAssignmentGoldenPath(t *testing.T) {
	ctx := context.Background()
	d, _, gateway, _, actions := newTestDeps()

	p := goldenpath.NewIssueAssignment(d, isolated()...)

	res, err := p.Run(ctx, &goldenpath.IssueAssignment{
		IssueKey: "REL-17",
		Assignee: "sam",
		Target:   "#release",
	})
	require.NoError(t, err)

	require.Equal(t, goldenpath.StatusCompleted, res.Status)

	executed := actions.Executed()
	require.Len(t, executed, 1)
	require.Equal(t, "assign", executed[0].Action)
	require.Equal(t, "REL-17", executed[0].TargetID)

	sent := gateway.Sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Content, "REL-17")
	require.Contains(t, sent[0].Content, "sam")
}

func TestIssueAssignmentInvalid(t *testing.T) {
	ctx := context.Background()
	d, _, _, _, _ := newTestDeps()

	p := goldenpath.NewIssueAssignment(d, isolated()...)

	_, err := p.Run(ctx, &goldenpath.IssueAssignment{IssueKey: "REL-17"})
	jtest.Assert(t, goldenpath.ErrInvalidInput, err)
}
