package sync

import (
	"context"
	"fmt"
	"io"
	"time"

	"goalsync/internal/goals"
	"goalsync/internal/tracker"
)

// Executor applies a pass's actions strictly one at a time, in set order,
// pausing between actions to respect tracker rate limits. A single action's
// failure is reported and the batch continues; a batch with zero successes
// is escalated so the loop does not spin against a dead backend.
type Executor struct {
	Tracker   tracker.Client
	Repo      tracker.Repo
	Timeframe string
	Docs      goals.Store
	Sleep     time.Duration
	Out       io.Writer

	// Observer, when set, is called with each action's outcome (journal
	// hook).
	Observer func(a Action, err error)
}

// Execute runs the batch and returns the success count. The returned error
// is non-nil only for the whole-batch-failure condition.
func (e Executor) Execute(ctx context.Context, actions []Action) (int, error) {
	succeeded := 0
	for _, a := range actions {
		fmt.Fprintf(e.Out, "* %s\n", a)
		err := e.apply(ctx, a)
		if err != nil {
			fmt.Fprintf(e.Out, "  error: %v\n", err)
		} else {
			succeeded++
		}
		if e.Observer != nil {
			e.Observer(a, err)
		}
		if e.Sleep > 0 {
			time.Sleep(e.Sleep)
		}
	}
	if succeeded == 0 && len(actions) > 0 {
		return 0, fmt.Errorf("all %d actions failed, aborting", len(actions))
	}
	return succeeded, nil
}

// apply dispatches over the closed action set. Every kind is handled; there
// is no default fall-through to forget a variant in.
func (e Executor) apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case KindCreateLabel:
		return e.Tracker.CreateLabel(ctx, e.Repo, a.Label)

	case KindCreateIssue:
		// The new issue is left unlocked and unlinked; the next pass picks
		// both up once the issue has a number.
		_, err := e.Tracker.CreateIssue(ctx, e.Repo, tracker.NewIssue{
			Title:     a.Issue.Title,
			Body:      a.Issue.Body,
			Labels:    a.Issue.Labels,
			Assignees: a.Issue.Assignees,
			Milestone: e.Timeframe,
		})
		return err

	case KindChangeTitle:
		return e.Tracker.ChangeTitle(ctx, e.Repo, a.Number, a.Title)

	case KindChangeMilestone:
		return e.Tracker.ChangeMilestone(ctx, e.Repo, a.Number, a.Milestone)

	case KindComment:
		return e.Tracker.CreateComment(ctx, e.Repo, a.Number, a.Body)

	case KindUpdateIssueBody:
		return e.Tracker.UpdateIssueBody(ctx, e.Repo, a.Number, a.Body)

	case KindSyncAssignees:
		return e.Tracker.SyncAssignees(ctx, e.Repo, a.Number, a.Remove, a.Add)

	case KindLockIssue:
		return e.Tracker.LockIssue(ctx, e.Repo, a.Number)

	case KindLinkToTrackingIssue:
		return e.Docs.SetTrackingIssue(a.DocPath, a.IssueRef)
	}
	return fmt.Errorf("unknown action kind %d", a.Kind)
}
