package sync

import (
	"fmt"
	"sort"
	"strings"

	"goalsync/internal/tracker"
)

// ActionKind enumerates the closed set of corrective actions. The declaration
// order is the execution order: labels before issues, issue edits before
// linkage write-back.
type ActionKind int

const (
	KindCreateLabel ActionKind = iota
	KindCreateIssue
	KindChangeTitle
	KindChangeMilestone
	KindComment
	KindUpdateIssueBody
	KindSyncAssignees
	KindLockIssue
	KindLinkToTrackingIssue
)

// Action is one atomic corrective operation, a plain value discriminated by
// Kind. Only the fields of the active variant are set.
type Action struct {
	Kind ActionKind

	Label tracker.Label // CreateLabel

	Issue DesiredIssue // CreateIssue

	Number    int    // all issue-targeted variants
	Title     string // ChangeTitle
	Milestone string // ChangeMilestone
	Body      string // Comment, UpdateIssueBody

	Remove []string // SyncAssignees
	Add    []string // SyncAssignees

	DocPath  string           // LinkToTrackingIssue
	DocIndex int              // LinkToTrackingIssue
	IssueRef tracker.IssueRef // LinkToTrackingIssue
}

// key is a total identity over the action's variant and fields. Equal keys
// mean structurally equal actions; the set deduplicates and orders by it.
func (a Action) key() string {
	switch a.Kind {
	case KindCreateLabel:
		return fmt.Sprintf("label|%s|%s", a.Label.Name, a.Label.Color)
	case KindCreateIssue:
		return fmt.Sprintf("create|%s|%s|%s|%s",
			a.Issue.Title,
			strings.Join(a.Issue.Assignees, ","),
			strings.Join(a.Issue.Labels, ","),
			a.Issue.Body)
	case KindChangeTitle:
		return fmt.Sprintf("title|%09d|%s", a.Number, a.Title)
	case KindChangeMilestone:
		return fmt.Sprintf("milestone|%09d|%s", a.Number, a.Milestone)
	case KindComment:
		return fmt.Sprintf("comment|%09d|%s", a.Number, a.Body)
	case KindUpdateIssueBody:
		return fmt.Sprintf("body|%09d|%s", a.Number, a.Body)
	case KindSyncAssignees:
		return fmt.Sprintf("assignees|%09d|-%s|+%s", a.Number,
			strings.Join(a.Remove, ","), strings.Join(a.Add, ","))
	case KindLockIssue:
		return fmt.Sprintf("lock|%09d", a.Number)
	case KindLinkToTrackingIssue:
		return fmt.Sprintf("link|%s|%s", a.DocPath, a.IssueRef)
	default:
		return fmt.Sprintf("unknown|%d", a.Kind)
	}
}

// String renders the action for dry-run listings and status lines.
func (a Action) String() string {
	switch a.Kind {
	case KindCreateLabel:
		return fmt.Sprintf("create label %q with color %q", a.Label.Name, a.Label.Color)
	case KindCreateIssue:
		return fmt.Sprintf("create issue %q", a.Issue.Title)
	case KindChangeTitle:
		return fmt.Sprintf("update issue #%d title to %q", a.Number, a.Title)
	case KindChangeMilestone:
		return fmt.Sprintf("update issue #%d milestone to %q", a.Number, a.Milestone)
	case KindComment:
		return fmt.Sprintf("post comment on issue #%d: %q", a.Number, a.Body)
	case KindUpdateIssueBody:
		return fmt.Sprintf("update the body on issue #%d for new milestone", a.Number)
	case KindSyncAssignees:
		parts := make([]string, 0, len(a.Remove)+len(a.Add))
		for _, u := range a.Remove {
			parts = append(parts, "-"+u)
		}
		for _, u := range a.Add {
			parts = append(parts, "+"+u)
		}
		return fmt.Sprintf("sync issue #%d assignees (%s)", a.Number, strings.Join(parts, ", "))
	case KindLockIssue:
		return fmt.Sprintf("lock issue #%d", a.Number)
	case KindLinkToTrackingIssue:
		return fmt.Sprintf("link issue %s to the goal document at %s", a.IssueRef, a.DocPath)
	default:
		return fmt.Sprintf("unknown action kind %d", a.Kind)
	}
}

// Set is an ordered, deduplicated action collection. Insertion order is
// irrelevant; Actions always yields the same deterministic sequence for the
// same contents.
type Set struct {
	items []Action
	keys  map[string]bool
}

func NewSet() *Set {
	return &Set{keys: map[string]bool{}}
}

// Insert adds an action unless a structurally equal one is present.
func (s *Set) Insert(a Action) {
	k := a.key()
	if s.keys[k] {
		return
	}
	s.keys[k] = true
	s.items = append(s.items, a)
}

func (s *Set) Len() int    { return len(s.items) }
func (s *Set) Empty() bool { return len(s.items) == 0 }

// Actions returns the actions ordered by variant, then fields.
func (s *Set) Actions() []Action {
	out := make([]Action, len(s.items))
	copy(out, s.items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].key() < out[j].key()
	})
	return out
}
