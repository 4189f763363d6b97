package sync_test

import (
	"strings"
	"testing"

	"goalsync/internal/goals"
	"goalsync/internal/sync"
)

func TestDesiredIssueAssigneesFromDirectory(t *testing.T) {
	doc := testDoc()
	doc.Owners = []string{"bob", "alice", "mallory"} // mallory is not in the directory
	di := desiredFor(t, doc)[0]
	if len(di.Assignees) != 2 || di.Assignees[0] != "alice" || di.Assignees[1] != "bob" {
		t.Fatalf("assignees = %v, want sorted [alice bob] with unknown owners dropped", di.Assignees)
	}
}

func TestDesiredIssueLabels(t *testing.T) {
	doc := testDoc()
	doc.Flagship = true
	di := desiredFor(t, doc)[0]
	want := []string{"C-tracking-issue", "Flagship Goal", "T-compiler"}
	if len(di.Labels) != len(want) {
		t.Fatalf("labels = %v, want %v", di.Labels, want)
	}
	for i := range want {
		if di.Labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", di.Labels, want)
		}
	}
}

func TestIssueBodyTemplate(t *testing.T) {
	doc := testDoc()
	doc.Plan = []goals.PlanSection{
		{
			Subgoal: "Ship it",
			Items: []goals.PlanItem{
				{Text: "land the RFC", Complete: true},
				{Text: "stabilize", Teams: []string{"compiler"}},
				{Text: "write docs", Users: []string{"alice", "bob"}},
			},
		},
	}
	di := desiredFor(t, doc)[0]
	body := di.Body

	for _, want := range []string{
		"| Metadata",
		"| Point of contact | alice, bob |",
		"| Goal document    | " + di.PermaLink + " |",
		"## Summary",
		"Make X happen.",
		"## Tasks and status",
		"### Ship it",
		"* [x] land the RFC",
		"* [ ] stabilize ([compiler](https://acme.dev/compiler) ![Team][])",
		"* [ ] write docs (alice, bob)",
		"[Team]: https://img.shields.io/badge/Team%20ask-red",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestDocumentLinkUsesTimeframeAndStem(t *testing.T) {
	doc := testDoc()
	link := testBuilder().DocumentLink(doc)
	want := "[2026h1/goal-x](https://acme.github.io/goals/2026h1/goal-x.html)"
	if link != want {
		t.Fatalf("link = %q, want %q", link, want)
	}
}

func TestTeamsWithAsksSortedAcrossDocs(t *testing.T) {
	a := testDoc()
	b := testDoc()
	b.TeamAsks = []goals.TeamAsk{{Teams: []string{"infra", "compiler"}}}
	got := sync.TeamsWithAsks([]goals.Document{a, b})
	if len(got) != 2 || got[0] != "compiler" || got[1] != "infra" {
		t.Fatalf("teams with asks = %v, want [compiler infra]", got)
	}
}

func TestDesiredLabelsCarryPalette(t *testing.T) {
	labels := sync.DesiredLabels([]string{"compiler", "infra"}, testBuilder().Teams)
	colors := map[string]string{}
	for _, l := range labels {
		colors[l.Name] = l.Color
	}
	if colors["C-tracking-issue"] != "f5f1fd" {
		t.Fatalf("tracking label color = %q", colors["C-tracking-issue"])
	}
	if colors["Flagship Goal"] != "5319E7" {
		t.Fatalf("flagship label color = %q", colors["Flagship Goal"])
	}
	if colors["T-compiler"] != "bfd4f2" || colors["T-infra"] != "bfd4f2" {
		t.Fatalf("team label colors = %v", colors)
	}
	for i := 1; i < len(labels); i++ {
		if labels[i-1].Name > labels[i].Name {
			t.Fatalf("labels not sorted: %v", labels)
		}
	}
}
