package tracker_test

import (
	"context"
	"errors"
	"testing"

	"goalsync/internal/tracker"
)

func TestParseRepo(t *testing.T) {
	repo, err := tracker.ParseRepo("acme/goals")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if repo.Owner != "acme" || repo.Name != "goals" {
		t.Fatalf("repo = %+v", repo)
	}
	if repo.String() != "acme/goals" {
		t.Fatalf("slug = %q", repo.String())
	}
	for _, bad := range []string{"", "acme", "/goals", "acme/"} {
		if _, err := tracker.ParseRepo(bad); err == nil {
			t.Errorf("ParseRepo(%q) should fail", bad)
		}
	}
}

func TestParseIssueRef(t *testing.T) {
	ref, err := tracker.ParseIssueRef("acme/goals#42")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ref.Repo.Owner != "acme" || ref.Number != 42 {
		t.Fatalf("ref = %+v", ref)
	}
	if ref.String() != "acme/goals#42" {
		t.Fatalf("ref renders as %q", ref)
	}
	for _, bad := range []string{"acme/goals", "acme/goals#", "acme/goals#zero", "acme/goals#0", "#42"} {
		if _, err := tracker.ParseIssueRef(bad); err == nil {
			t.Errorf("ParseIssueRef(%q) should fail", bad)
		}
	}
}

func TestMemoryIssueLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := tracker.Repo{Owner: "acme", Name: "goals"}
	m := tracker.NewMemory()

	n, err := m.CreateIssue(ctx, repo, tracker.NewIssue{
		Title:     "Goal X",
		Body:      "body",
		Milestone: "2026h1",
		Assignees: []string{"alice"},
		Labels:    []string{"C-tracking-issue"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.ChangeTitle(ctx, repo, n, "Goal X v2"); err != nil {
		t.Fatal(err)
	}
	if err := m.SyncAssignees(ctx, repo, n, []string{"alice"}, []string{"bob", "carol"}); err != nil {
		t.Fatal(err)
	}
	if err := m.LockIssue(ctx, repo, n); err != nil {
		t.Fatal(err)
	}

	is, err := m.FetchIssue(ctx, repo, n)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if is.Title != "Goal X v2" || !is.Locked {
		t.Fatalf("issue = %+v", is)
	}
	if len(is.Assignees) != 2 || is.Assignees[0] != "bob" || is.Assignees[1] != "carol" {
		t.Fatalf("assignees = %v", is.Assignees)
	}

	listed, err := m.ListIssuesInMilestone(ctx, repo, "2026h1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("milestone listing = %v, %v", listed, err)
	}
	if listed, _ := m.ListIssuesInMilestone(ctx, repo, "2025h2"); len(listed) != 0 {
		t.Fatalf("unexpected issues in other milestone: %v", listed)
	}

	if _, err := m.FetchIssue(ctx, repo, 999); !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("missing issue error = %v, want ErrNotFound", err)
	}
}

func TestMemoryDuplicateLabelRejected(t *testing.T) {
	ctx := context.Background()
	repo := tracker.Repo{Owner: "acme", Name: "goals"}
	m := tracker.NewMemory()
	label := tracker.Label{Name: "T-compiler", Color: "bfd4f2"}
	if err := m.CreateLabel(ctx, repo, label); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateLabel(ctx, repo, label); err == nil {
		t.Fatalf("duplicate label should be rejected")
	}
}

func TestMemoryKnownUsersFilterOnCreate(t *testing.T) {
	ctx := context.Background()
	repo := tracker.Repo{Owner: "acme", Name: "goals"}
	m := tracker.NewMemory()
	m.KnownUsers = map[string]bool{"alice": true}
	n, err := m.CreateIssue(ctx, repo, tracker.NewIssue{Title: "x", Milestone: "m", Assignees: []string{"alice", "ghost"}})
	if err != nil {
		t.Fatal(err)
	}
	is, _ := m.FetchIssue(ctx, repo, n)
	if len(is.Assignees) != 1 || is.Assignees[0] != "alice" {
		t.Fatalf("assignees = %v, unknown user should be dropped", is.Assignees)
	}
}
