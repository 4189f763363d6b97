package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Client backing tests and the local trackerd server.
// It models a single repository; the repo argument is accepted but not
// checked so the same store can serve any slug.
type Memory struct {
	mu     sync.Mutex
	labels []Label
	issues map[int]*Issue
	next   int

	// KnownUsers, when non-nil, restricts which assignees exist. Unknown
	// users are skipped during assignee sync, mirroring an organization
	// that a user has left.
	KnownUsers map[string]bool
}

func NewMemory() *Memory {
	return &Memory{issues: map[int]*Issue{}, next: 1}
}

// Seed inserts an issue directly, bypassing numbering when the issue already
// carries a number.
func (m *Memory) Seed(issue Issue) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if issue.Number == 0 {
		issue.Number = m.next
	}
	if issue.Number >= m.next {
		m.next = issue.Number + 1
	}
	cp := issue
	m.issues[cp.Number] = &cp
	return cp.Number
}

func (m *Memory) ListLabels(ctx context.Context, repo Repo) ([]Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Label, len(m.labels))
	copy(out, m.labels)
	return out, nil
}

func (m *Memory) CreateLabel(ctx context.Context, repo Repo, label Label) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.labels {
		if l.Name == label.Name {
			return fmt.Errorf("label %q already exists", label.Name)
		}
	}
	m.labels = append(m.labels, label)
	return nil
}

func (m *Memory) ListIssuesInMilestone(ctx context.Context, repo Repo, milestone string) ([]Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Issue
	for _, is := range m.issues {
		if is.Milestone == milestone {
			out = append(out, cloneIssue(*is))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) FetchIssue(ctx context.Context, repo Repo, number int) (Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	is, ok := m.issues[number]
	if !ok {
		return Issue{}, fmt.Errorf("issue #%d: %w", number, ErrNotFound)
	}
	return cloneIssue(*is), nil
}

func (m *Memory) CreateIssue(ctx context.Context, repo Repo, issue NewIssue) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.next
	m.next++
	assignees := m.filterKnown(issue.Assignees)
	m.issues[n] = &Issue{
		Number:    n,
		Title:     issue.Title,
		Assignees: assignees,
		Milestone: issue.Milestone,
		Body:      issue.Body,
		Labels:    append([]string(nil), issue.Labels...),
	}
	return n, nil
}

func (m *Memory) ChangeTitle(ctx context.Context, repo Repo, number int, title string) error {
	return m.update(number, func(is *Issue) { is.Title = title })
}

func (m *Memory) ChangeMilestone(ctx context.Context, repo Repo, number int, milestone string) error {
	return m.update(number, func(is *Issue) { is.Milestone = milestone })
}

func (m *Memory) CreateComment(ctx context.Context, repo Repo, number int, body string) error {
	return m.update(number, func(is *Issue) {})
}

func (m *Memory) UpdateIssueBody(ctx context.Context, repo Repo, number int, body string) error {
	return m.update(number, func(is *Issue) { is.Body = body })
}

func (m *Memory) SyncAssignees(ctx context.Context, repo Repo, number int, remove, add []string) error {
	return m.update(number, func(is *Issue) {
		keep := is.Assignees[:0]
		for _, a := range is.Assignees {
			removed := false
			for _, r := range remove {
				if a == r {
					removed = true
					break
				}
			}
			if !removed {
				keep = append(keep, a)
			}
		}
		is.Assignees = keep
		for _, a := range m.filterKnown(add) {
			present := false
			for _, cur := range is.Assignees {
				if cur == a {
					present = true
					break
				}
			}
			if !present {
				is.Assignees = append(is.Assignees, a)
			}
		}
		sort.Strings(is.Assignees)
	})
}

func (m *Memory) LockIssue(ctx context.Context, repo Repo, number int) error {
	return m.update(number, func(is *Issue) { is.Locked = true })
}

func (m *Memory) update(number int, fn func(*Issue)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	is, ok := m.issues[number]
	if !ok {
		return fmt.Errorf("issue #%d: %w", number, ErrNotFound)
	}
	fn(is)
	return nil
}

func (m *Memory) filterKnown(users []string) []string {
	if m.KnownUsers == nil {
		return append([]string(nil), users...)
	}
	var out []string
	for _, u := range users {
		if m.KnownUsers[u] {
			out = append(out, u)
		}
	}
	return out
}

func cloneIssue(is Issue) Issue {
	is.Assignees = append([]string(nil), is.Assignees...)
	is.Labels = append([]string(nil), is.Labels...)
	return is
}

var _ Client = (*Memory)(nil)
