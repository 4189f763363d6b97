// Package sync is the reconciliation core: it derives the desired tracker
// state from goal documents, diffs it against the observed state, and drives
// repeated corrective passes to a fixpoint.
package sync

import (
	"fmt"
	"sort"
	"strings"

	"goalsync/internal/directory"
	"goalsync/internal/goals"
	"goalsync/internal/tracker"
)

// Label names and colors are fixed. Existing labels are matched by name
// only; a color mismatch is never corrected.
const (
	TrackingIssueLabel = "C-tracking-issue"
	FlagshipLabel      = "Flagship Goal"

	teamLabelColor     = "bfd4f2"
	trackingLabelColor = "f5f1fd"
	flagshipLabelColor = "5319E7"
)

// DesiredIssue is the target specification for one goal document's tracking
// issue, rebuilt from scratch every pass.
type DesiredIssue struct {
	Title     string
	Assignees []string
	Body      string
	Labels    []string
	Tracking  *tracker.IssueRef

	// PermaLink is the canonical goal-document link for this timeframe. Its
	// presence in an issue body marks the body as current.
	PermaLink string

	// Doc indexes the source document within the pass's collection; DocPath
	// addresses it on disk for tracking-issue write-back.
	Doc     int
	DocPath string
}

// Builder turns goal documents into desired issues and labels.
type Builder struct {
	Timeframe string
	SiteBase  string
	People    directory.People
	Teams     directory.Teams
}

// Issues builds one DesiredIssue per document, in document order.
func (b Builder) Issues(docs []goals.Document) ([]DesiredIssue, error) {
	out := make([]DesiredIssue, 0, len(docs))
	for i, doc := range docs {
		di, err := b.issue(i, doc)
		if err != nil {
			return nil, fmt.Errorf("goal %q: %w", doc.Title, err)
		}
		out = append(out, di)
	}
	return out, nil
}

func (b Builder) issue(index int, doc goals.Document) (DesiredIssue, error) {
	var assignees []string
	for _, owner := range doc.Owners {
		// Owners without a directory entry are dropped, not errors.
		if person, ok := b.People.Lookup(owner); ok {
			assignees = append(assignees, person.GitHub)
		}
	}
	sort.Strings(assignees)

	labels := []string{TrackingIssueLabel}
	if doc.Flagship {
		labels = append(labels, FlagshipLabel)
	}
	for _, name := range doc.TeamsWithAsks() {
		labels = append(labels, b.teamLabel(name))
	}

	return DesiredIssue{
		Title:     doc.Title,
		Assignees: assignees,
		Body:      b.issueBody(doc),
		Labels:    labels,
		Tracking:  doc.Tracking,
		PermaLink: b.DocumentLink(doc),
		Doc:       index,
		DocPath:   doc.Path,
	}, nil
}

// DocumentLink renders the canonical permalink for a document in this
// timeframe. It doubles as the body-freshness marker.
func (b Builder) DocumentLink(doc goals.Document) string {
	stem := doc.LinkStem()
	return fmt.Sprintf("[%s/%s](%s/%s/%s.html)",
		b.Timeframe, stem, strings.TrimRight(b.SiteBase, "/"), b.Timeframe, stem)
}

func (b Builder) issueBody(doc goals.Document) string {
	var tasks []string
	for _, section := range doc.Plan {
		if section.Subgoal != "" {
			tasks = append(tasks, "### "+section.Subgoal)
		}
		for _, item := range section.Items {
			box := "[ ]"
			if item.Complete {
				box = "[x]"
			}
			line := fmt.Sprintf("* %s %s", box, item.Text)
			switch {
			case len(item.Teams) > 0:
				links := make([]string, len(item.Teams))
				for i, name := range item.Teams {
					links[i] = b.teamNameAndLink(name)
				}
				line += fmt.Sprintf(" (%s ![Team][])", strings.Join(links, ", "))
			case len(item.Users) > 0:
				line += fmt.Sprintf(" (%s)", strings.Join(item.Users, ", "))
			}
			tasks = append(tasks, line)
		}
	}

	var teams []string
	for _, name := range doc.TeamsWithAsks() {
		teams = append(teams, b.teamNameAndLink(name))
	}

	return fmt.Sprintf(`
| Metadata         | |
| --------         | --- |
| Point of contact | %s |
| Team(s)          | %s |
| Goal document    | %s |

## Summary

%s

## Tasks and status

%s

[Team]: https://img.shields.io/badge/Team%%20ask-red
`,
		strings.Join(doc.Owners, ", "),
		strings.Join(teams, ", "),
		b.DocumentLink(doc),
		doc.Summary,
		strings.Join(tasks, "\n"))
}

func (b Builder) teamLabel(name string) string {
	if team, ok := b.Teams.Get(name); ok {
		return team.GhLabel()
	}
	return directory.Team{Name: name}.GhLabel()
}

func (b Builder) teamNameAndLink(name string) string {
	if team, ok := b.Teams.Get(name); ok {
		return team.NameAndLink()
	}
	return name
}

// TeamsWithAsks is the sorted set of team names asked for by any document.
func TeamsWithAsks(docs []goals.Document) []string {
	seen := map[string]bool{}
	var out []string
	for _, doc := range docs {
		for _, name := range doc.TeamsWithAsks() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// DesiredLabels is the full label set the repository should carry: one label
// per asked team plus the tracking and flagship labels.
func DesiredLabels(teamsWithAsks []string, teams directory.Teams) []tracker.Label {
	out := []tracker.Label{
		{Name: TrackingIssueLabel, Color: trackingLabelColor},
		{Name: FlagshipLabel, Color: flagshipLabelColor},
	}
	for _, name := range teamsWithAsks {
		team, ok := teams.Get(name)
		if !ok {
			team = directory.Team{Name: name}
		}
		out = append(out, tracker.Label{Name: team.GhLabel(), Color: teamLabelColor})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
