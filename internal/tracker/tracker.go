package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a label, issue or milestone does not exist.
var ErrNotFound = errors.New("not found")

// Repo identifies a repository on the tracker.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// ParseRepo parses an "owner/name" slug.
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" {
		return Repo{}, fmt.Errorf("invalid repository %q, expected owner/name", s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// IssueRef identifies an issue by repository and number.
type IssueRef struct {
	Repo   Repo
	Number int
}

func (r IssueRef) String() string { return fmt.Sprintf("%s#%d", r.Repo, r.Number) }

// ParseIssueRef parses an "owner/name#123" reference.
func ParseIssueRef(s string) (IssueRef, error) {
	slug, num, ok := strings.Cut(s, "#")
	if !ok {
		return IssueRef{}, fmt.Errorf("invalid issue reference %q, expected owner/name#number", s)
	}
	repo, err := ParseRepo(slug)
	if err != nil {
		return IssueRef{}, err
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return IssueRef{}, fmt.Errorf("invalid issue number in %q", s)
	}
	return IssueRef{Repo: repo, Number: n}, nil
}

// Label is a repository label. Diffing is by name only; an existing label is
// never recolored.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Issue is the observed state of a tracking issue.
type Issue struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	Assignees []string `json:"assignees"`
	Milestone string   `json:"milestone,omitempty"`
	Body      string   `json:"body"`
	Locked    bool     `json:"locked"`
	Labels    []string `json:"labels,omitempty"`
}

// NewIssue is the payload for issue creation.
type NewIssue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
	Milestone string
}

// Client is the tracker API consumed by the sync core. Implementations:
// Memory (in-process), REST (GitHub-compatible HTTP).
type Client interface {
	ListLabels(ctx context.Context, repo Repo) ([]Label, error)
	CreateLabel(ctx context.Context, repo Repo, label Label) error
	ListIssuesInMilestone(ctx context.Context, repo Repo, milestone string) ([]Issue, error)
	FetchIssue(ctx context.Context, repo Repo, number int) (Issue, error)
	CreateIssue(ctx context.Context, repo Repo, issue NewIssue) (int, error)
	ChangeTitle(ctx context.Context, repo Repo, number int, title string) error
	ChangeMilestone(ctx context.Context, repo Repo, number int, milestone string) error
	CreateComment(ctx context.Context, repo Repo, number int, body string) error
	UpdateIssueBody(ctx context.Context, repo Repo, number int, body string) error
	SyncAssignees(ctx context.Context, repo Repo, number int, remove, add []string) error
	LockIssue(ctx context.Context, repo Repo, number int) error
}
