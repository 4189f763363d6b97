package goals_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goalsync/internal/goals"
	"goalsync/internal/tracker"
)

const goalYAML = `title: Goal X
tracking_issue: acme/goals#42
summary: Make X happen.
owners: [alice]
asks:
  - teams: [compiler]
plan:
  - subgoal: Ship it
    items:
      - text: land the RFC
        complete: true
      - text: stabilize
        teams: [compiler]
`

func writeGoalDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	tf := filepath.Join(dir, "2026h1")
	if err := os.Mkdir(tf, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tf, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return tf
}

func TestLoadParsesDocuments(t *testing.T) {
	dir := writeGoalDir(t, map[string]string{
		"b-goal.yaml": goalYAML,
		"a-goal.yaml": "title: Goal A\nsummary: First.\n",
		"notes.txt":   "not a goal",
	})
	docs, err := goals.Dir{Path: dir}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("loaded %d docs, want 2", len(docs))
	}
	if docs[0].Title != "Goal A" || docs[1].Title != "Goal X" {
		t.Fatalf("docs not in filename order: %q, %q", docs[0].Title, docs[1].Title)
	}
	x := docs[1]
	if x.Tracking == nil || x.Tracking.Number != 42 || x.Tracking.Repo.Owner != "acme" {
		t.Fatalf("tracking ref = %v", x.Tracking)
	}
	if x.LinkStem() != "b-goal" {
		t.Fatalf("link stem = %q", x.LinkStem())
	}
	if got := x.TeamsWithAsks(); len(got) != 1 || got[0] != "compiler" {
		t.Fatalf("teams with asks = %v", got)
	}
}

func TestLoadRejectsItemWithTeamsAndUsers(t *testing.T) {
	dir := writeGoalDir(t, map[string]string{
		"bad.yaml": "title: Bad\nplan:\n  - items:\n      - text: both\n        teams: [compiler]\n        users: [alice]\n",
	})
	_, err := goals.Dir{Path: dir}.Load()
	if err == nil || !strings.Contains(err.Error(), "both teams and users") {
		t.Fatalf("expected teams-and-users error, got %v", err)
	}
}

func TestLoadRejectsMissingTitle(t *testing.T) {
	dir := writeGoalDir(t, map[string]string{"bad.yaml": "summary: no title\n"})
	if _, err := (goals.Dir{Path: dir}).Load(); err == nil {
		t.Fatalf("expected missing title error")
	}
}

func TestAccepted(t *testing.T) {
	for status, want := range map[string]bool{
		"":              true,
		"accepted":      true,
		"proposed":      true,
		"not accepted":  false,
		"Not Accepted":  false,
		" NOT ACCEPTED": false,
	} {
		doc := goals.Document{Title: "x", Status: status}
		if doc.Accepted() != want {
			t.Errorf("Accepted(%q) = %v, want %v", status, !want, want)
		}
	}
}

func TestValidateDir(t *testing.T) {
	dir := writeGoalDir(t, nil)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(filepath.Dir(dir)); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	timeframe, err := goals.ValidateDir("2026h1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if timeframe != "2026h1" {
		t.Fatalf("timeframe = %q, want 2026h1", timeframe)
	}

	if _, err := goals.ValidateDir(dir); err == nil {
		t.Fatalf("absolute paths must be rejected")
	}
	if _, err := goals.ValidateDir("does/not/exist"); err == nil {
		t.Fatalf("missing directories must be rejected")
	}
}

func TestSetTrackingIssueReplacesLine(t *testing.T) {
	dir := writeGoalDir(t, map[string]string{"goal.yaml": goalYAML})
	path := filepath.Join(dir, "goal.yaml")
	ref := tracker.IssueRef{Repo: tracker.Repo{Owner: "acme", Name: "goals"}, Number: 99}
	if err := (goals.Dir{Path: dir}).SetTrackingIssue(path, ref); err != nil {
		t.Fatalf("set tracking issue: %v", err)
	}
	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "tracking_issue: acme/goals#99") {
		t.Fatalf("tracking line not rewritten:\n%s", content)
	}
	if strings.Contains(content, "#42") {
		t.Fatalf("old reference still present:\n%s", content)
	}
	// Everything else survives byte for byte.
	if !strings.Contains(content, "summary: Make X happen.") || !strings.Contains(content, "teams: [compiler]") {
		t.Fatalf("unrelated content disturbed:\n%s", content)
	}
	// The rewrite parses back.
	docs, err := goals.Dir{Path: dir}.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if docs[0].Tracking == nil || docs[0].Tracking.Number != 99 {
		t.Fatalf("reloaded tracking = %v", docs[0].Tracking)
	}
}

func TestSetTrackingIssueInsertsAfterTitle(t *testing.T) {
	dir := writeGoalDir(t, map[string]string{"goal.yaml": "title: Goal Y\nsummary: No link yet.\n"})
	path := filepath.Join(dir, "goal.yaml")
	ref := tracker.IssueRef{Repo: tracker.Repo{Owner: "acme", Name: "goals"}, Number: 7}
	if err := (goals.Dir{Path: dir}).SetTrackingIssue(path, ref); err != nil {
		t.Fatalf("set tracking issue: %v", err)
	}
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "title: Goal Y" || lines[1] != "tracking_issue: acme/goals#7" {
		t.Fatalf("unexpected layout: %q", lines)
	}
}
