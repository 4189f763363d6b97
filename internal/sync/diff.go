package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"goalsync/internal/tracker"
)

// Fixed comment texts emitted by the coupled milestone and lock checks.
const (
	continuedGoalPrefix = "This issue now tracks a continuing goal for milestone"

	lockComment = "This issue is intended for status updates only.\n\n" +
		"For general questions or comments, please contact the owner(s) directly."
)

// Differ computes the corrective action set for one pass. It holds the
// tracker only for point-fetching issues declared by number but absent from
// the milestone listing.
type Differ struct {
	Repo      tracker.Repo
	Timeframe string
	Tracker   tracker.Client
}

// Labels diffs desired labels against existing ones by name only and inserts
// a CreateLabel action for each missing one. An existing label with a
// different color is left alone.
func (d Differ) Labels(desired []tracker.Label, existing []tracker.Label, set *Set) {
	have := map[string]bool{}
	for _, l := range existing {
		have[l.Name] = true
	}
	for _, l := range desired {
		if !have[l.Name] {
			set.Insert(Action{Kind: KindCreateLabel, Label: l})
		}
	}
}

// Issues matches each desired issue to at most one existing issue and inserts
// the corrective actions for it.
func (d Differ) Issues(ctx context.Context, desired []DesiredIssue, milestoneIssues []tracker.Issue, set *Set) error {
	for _, di := range desired {
		existing, found, err := d.match(ctx, di, milestoneIssues)
		if err != nil {
			return err
		}
		if !found {
			// The issue does not exist yet: create it and nothing else this
			// pass. Assignee, lock and linkage sync happen on the next pass,
			// once the issue has a number.
			set.Insert(Action{Kind: KindCreateIssue, Issue: di})
			continue
		}
		d.diffIssue(di, existing, set)
	}
	return nil
}

// match finds the existing issue for a desired one. A declared tracking
// number wins over a title match; the title search takes the first hit,
// titles being unique within a milestone.
func (d Differ) match(ctx context.Context, di DesiredIssue, milestoneIssues []tracker.Issue) (tracker.Issue, bool, error) {
	if di.Tracking != nil {
		for _, is := range milestoneIssues {
			if is.Number == di.Tracking.Number {
				return is, true, nil
			}
		}
		// Declared but not in the milestone listing, e.g. still carrying an
		// older milestone. Fetch it by number.
		is, err := d.Tracker.FetchIssue(ctx, d.Repo, di.Tracking.Number)
		if err != nil {
			return tracker.Issue{}, false, fmt.Errorf("fetch declared tracking issue %s: %w", di.Tracking, err)
		}
		return is, true, nil
	}
	for _, is := range milestoneIssues {
		if is.Title == di.Title {
			return is, true, nil
		}
	}
	return tracker.Issue{}, false, nil
}

// diffIssue runs the five independent checks plus tracking linkage. Every
// check is evaluated each pass; none short-circuits another.
func (d Differ) diffIssue(di DesiredIssue, existing tracker.Issue, set *Set) {
	if remove, add, equal := diffAssignees(existing.Assignees, di.Assignees); !equal {
		set.Insert(Action{
			Kind:   KindSyncAssignees,
			Number: existing.Number,
			Remove: remove,
			Add:    add,
		})
	}

	if existing.Title != di.Title {
		set.Insert(Action{Kind: KindChangeTitle, Number: existing.Number, Title: di.Title})
	}

	// Milestone move and its continuation comment are a coupled pair.
	if existing.Milestone != d.Timeframe {
		set.Insert(Action{Kind: KindChangeMilestone, Number: existing.Number, Milestone: d.Timeframe})
		set.Insert(Action{
			Kind:   KindComment,
			Number: existing.Number,
			Body:   fmt.Sprintf("%s %s", continuedGoalPrefix, d.Timeframe),
		})
	}

	// Locking and its notice comment are a coupled pair.
	if !existing.Locked {
		set.Insert(Action{Kind: KindLockIssue, Number: existing.Number})
		set.Insert(Action{Kind: KindComment, Number: existing.Number, Body: lockComment})
	}

	// Body freshness: the canonical permalink doubles as the marker. Manual
	// edits are archived inside the regenerated body, never discarded.
	if !strings.Contains(existing.Body, di.PermaLink) {
		body := fmt.Sprintf(
			"%s\n---\nNote: the body was regenerated to match the %s goal document. "+
				"The previous text is preserved below.\n<details>\n%s\n</details>",
			di.Body, d.Timeframe, existing.Body)
		set.Insert(Action{Kind: KindUpdateIssueBody, Number: existing.Number, Body: body})
	}

	// Self-healing linkage: write the discovered number back into the
	// document when it differs from what the document declares.
	ref := tracker.IssueRef{Repo: d.Repo, Number: existing.Number}
	if di.Tracking == nil || *di.Tracking != ref {
		set.Insert(Action{
			Kind:     KindLinkToTrackingIssue,
			DocPath:  di.DocPath,
			DocIndex: di.Doc,
			IssueRef: ref,
		})
	}
}

// diffAssignees computes remove = existing−desired and add =
// desired−existing, both sorted. equal is true when the sets already match.
func diffAssignees(existing, desired []string) (remove, add []string, equal bool) {
	have := map[string]bool{}
	for _, u := range existing {
		have[u] = true
	}
	want := map[string]bool{}
	for _, u := range desired {
		want[u] = true
	}
	for u := range have {
		if !want[u] {
			remove = append(remove, u)
		}
	}
	for u := range want {
		if !have[u] {
			add = append(add, u)
		}
	}
	sort.Strings(remove)
	sort.Strings(add)
	return remove, add, len(remove) == 0 && len(add) == 0
}
