package trackerd_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"goalsync/internal/tracker"
	"goalsync/internal/trackerd"
)

var testRepo = tracker.Repo{Owner: "acme", Name: "goals"}

func newServer(t *testing.T, store *tracker.Memory, token string) *httptest.Server {
	t.Helper()
	handler, err := trackerd.New(trackerd.Config{
		Store:      store,
		Milestones: []string{"2025h2", "2026h1"},
		Token:      token,
	})
	if err != nil {
		t.Fatalf("new trackerd: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// TestRESTRoundTrip drives the full client surface through the HTTP server:
// the same path a rehearsal sync run takes.
func TestRESTRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := tracker.NewMemory()
	srv := newServer(t, store, "")
	client := tracker.NewREST(srv.URL, nil)

	if err := client.CreateLabel(ctx, testRepo, tracker.Label{Name: "C-tracking-issue", Color: "f5f1fd"}); err != nil {
		t.Fatalf("create label: %v", err)
	}
	labels, err := client.ListLabels(ctx, testRepo)
	if err != nil || len(labels) != 1 {
		t.Fatalf("list labels = %v, %v", labels, err)
	}
	if labels[0].Name != "C-tracking-issue" || labels[0].Color != "f5f1fd" {
		t.Fatalf("label = %+v", labels[0])
	}

	n, err := client.CreateIssue(ctx, testRepo, tracker.NewIssue{
		Title:     "Goal X",
		Body:      "the body",
		Labels:    []string{"C-tracking-issue"},
		Assignees: []string{"alice"},
		Milestone: "2026h1",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}

	issues, err := client.ListIssuesInMilestone(ctx, testRepo, "2026h1")
	if err != nil || len(issues) != 1 {
		t.Fatalf("milestone listing = %v, %v", issues, err)
	}
	if issues[0].Number != n || issues[0].Title != "Goal X" || issues[0].Milestone != "2026h1" {
		t.Fatalf("issue = %+v", issues[0])
	}

	if err := client.ChangeTitle(ctx, testRepo, n, "Goal X v2"); err != nil {
		t.Fatalf("change title: %v", err)
	}
	if err := client.ChangeMilestone(ctx, testRepo, n, "2025h2"); err != nil {
		t.Fatalf("change milestone: %v", err)
	}
	if err := client.UpdateIssueBody(ctx, testRepo, n, "fresh body"); err != nil {
		t.Fatalf("update body: %v", err)
	}
	if err := client.CreateComment(ctx, testRepo, n, "a comment"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := client.SyncAssignees(ctx, testRepo, n, []string{"alice"}, []string{"bob"}); err != nil {
		t.Fatalf("sync assignees: %v", err)
	}
	if err := client.LockIssue(ctx, testRepo, n); err != nil {
		t.Fatalf("lock: %v", err)
	}

	is, err := client.FetchIssue(ctx, testRepo, n)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if is.Title != "Goal X v2" || is.Milestone != "2025h2" || is.Body != "fresh body" || !is.Locked {
		t.Fatalf("issue = %+v", is)
	}
	if len(is.Assignees) != 1 || is.Assignees[0] != "bob" {
		t.Fatalf("assignees = %v", is.Assignees)
	}
}

func TestFetchMissingIssueIsNotFound(t *testing.T) {
	srv := newServer(t, tracker.NewMemory(), "")
	client := tracker.NewREST(srv.URL, nil)
	_, err := client.FetchIssue(context.Background(), testRepo, 404)
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnknownMilestoneRejected(t *testing.T) {
	srv := newServer(t, tracker.NewMemory(), "")
	client := tracker.NewREST(srv.URL, nil)
	_, err := client.CreateIssue(context.Background(), testRepo, tracker.NewIssue{Title: "x", Milestone: "2030h1"})
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for unknown milestone", err)
	}
}

func TestBearerTokenEnforced(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, tracker.NewMemory(), "hunter2")

	anon := tracker.NewREST(srv.URL, nil)
	if _, err := anon.ListLabels(ctx, testRepo); err == nil {
		t.Fatalf("anonymous request should be rejected")
	}

	wrong := tracker.NewREST(srv.URL, tracker.StaticToken("wrong"))
	var apiErr *tracker.APIError
	if _, err := wrong.ListLabels(ctx, testRepo); !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("err = %v, want 401", err)
	}

	ok := tracker.NewREST(srv.URL, tracker.StaticToken("hunter2"))
	if _, err := ok.ListLabels(ctx, testRepo); err != nil {
		t.Fatalf("authorized request failed: %v", err)
	}
}

// The sync loop itself can run against trackerd through the REST client; this
// is the rehearsal mode the daemon exists for.
func TestDifferRunsAgainstServer(t *testing.T) {
	ctx := context.Background()
	store := tracker.NewMemory()
	srv := newServer(t, store, "")
	client := tracker.NewREST(srv.URL, nil)

	n, err := client.CreateIssue(ctx, testRepo, tracker.NewIssue{Title: "Goal X", Milestone: "2026h1"})
	if err != nil {
		t.Fatal(err)
	}
	is, err := client.FetchIssue(ctx, testRepo, n)
	if err != nil || is.Milestone != "2026h1" {
		t.Fatalf("fetch over http: %+v, %v", is, err)
	}
}
