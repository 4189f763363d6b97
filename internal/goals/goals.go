// Package goals loads the goal-document corpus for a timeframe and writes
// discovered tracking-issue numbers back into the documents.
package goals

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"goalsync/internal/tracker"
)

// PlanItem is one checklist entry. It may carry team asks or raw usernames,
// never both.
type PlanItem struct {
	Text     string   `yaml:"text"`
	Complete bool     `yaml:"complete"`
	Teams    []string `yaml:"teams,omitempty"`
	Users    []string `yaml:"users,omitempty"`
}

// PlanSection groups plan items under an optional subgoal heading.
type PlanSection struct {
	Subgoal string     `yaml:"subgoal,omitempty"`
	Items   []PlanItem `yaml:"items"`
}

// TeamAsk records which teams a document asks for help from.
type TeamAsk struct {
	Teams []string `yaml:"teams"`
}

// Document is one goal document, immutable for the duration of a pass.
type Document struct {
	Path     string `yaml:"-"`
	Title    string `yaml:"title"`
	Summary  string `yaml:"summary"`
	Status   string `yaml:"status,omitempty"`
	Flagship bool   `yaml:"flagship,omitempty"`

	Owners        []string      `yaml:"owners,omitempty"`
	TrackingIssue string        `yaml:"tracking_issue,omitempty"`
	TeamAsks      []TeamAsk     `yaml:"asks,omitempty"`
	Plan          []PlanSection `yaml:"plan,omitempty"`

	// Tracking is TrackingIssue parsed, nil when the document has not been
	// linked to an issue yet.
	Tracking *tracker.IssueRef `yaml:"-"`
}

// LinkStem is the document's stable link component, the filename without
// extension.
func (d Document) LinkStem() string {
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Accepted reports whether the document should be synced at all.
func (d Document) Accepted() bool {
	return !strings.EqualFold(strings.TrimSpace(d.Status), "not accepted")
}

// TeamsWithAsks returns the document's asked teams in first-mention order,
// deduplicated.
func (d Document) TeamsWithAsks() []string {
	seen := map[string]bool{}
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, ask := range d.TeamAsks {
		add(ask.Teams)
	}
	for _, section := range d.Plan {
		for _, item := range section.Items {
			add(item.Teams)
		}
	}
	return out
}

func (d Document) validate() error {
	if d.Title == "" {
		return fmt.Errorf("missing title")
	}
	for _, section := range d.Plan {
		for _, item := range section.Items {
			if len(item.Teams) > 0 && len(item.Users) > 0 {
				return fmt.Errorf("plan item %q declares both teams and users", item.Text)
			}
		}
	}
	return nil
}

// Loader yields the ordered document collection for a pass.
type Loader interface {
	Load() ([]Document, error)
}

// Store writes a discovered tracking issue back into its source document.
type Store interface {
	SetTrackingIssue(path string, ref tracker.IssueRef) error
}

// ValidateDir checks the sync target and extracts the timeframe from its
// last path component (e.g. goals/2026h2 -> 2026h2).
func ValidateDir(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("goal path should be relative, like goals/2026h2")
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("goal path should be a directory like goals/2026h2")
	}
	timeframe := filepath.Base(filepath.Clean(path))
	if timeframe == "." || timeframe == string(filepath.Separator) {
		return "", fmt.Errorf("invalid goal path %q", path)
	}
	return timeframe, nil
}

// Dir loads goal documents from the YAML files of a timeframe directory and
// persists tracking-issue links by editing the files in place.
type Dir struct {
	Path string
}

func (d Dir) Load() ([]Document, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("read goal directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	var docs []Document
	for _, name := range files {
		path := filepath.Join(d.Path, name)
		doc, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("goal document %s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("invalid yaml: %w", err)
	}
	doc.Path = path
	if err := doc.validate(); err != nil {
		return Document{}, err
	}
	if doc.TrackingIssue != "" {
		ref, err := tracker.ParseIssueRef(doc.TrackingIssue)
		if err != nil {
			return Document{}, err
		}
		doc.Tracking = &ref
	}
	return doc, nil
}

// SetTrackingIssue rewrites the document's tracking_issue line in place,
// preserving the rest of the file byte for byte.
func (d Dir) SetTrackingIssue(path string, ref tracker.IssueRef) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	entry := fmt.Sprintf("tracking_issue: %s", ref)
	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, "tracking_issue:") {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		inserted := make([]string, 0, len(lines)+1)
		done := false
		for _, line := range lines {
			inserted = append(inserted, line)
			if !done && strings.HasPrefix(line, "title:") {
				inserted = append(inserted, entry)
				done = true
			}
		}
		if !done {
			inserted = append([]string{entry}, inserted...)
		}
		lines = inserted
	}
	content := strings.Join(lines, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Memory is an in-process corpus for tests and simulations.
type Memory struct {
	Docs []Document
}

func (m *Memory) Load() ([]Document, error) {
	out := make([]Document, len(m.Docs))
	copy(out, m.Docs)
	return out, nil
}

func (m *Memory) SetTrackingIssue(path string, ref tracker.IssueRef) error {
	for i := range m.Docs {
		if m.Docs[i].Path == path {
			m.Docs[i].TrackingIssue = ref.String()
			r := ref
			m.Docs[i].Tracking = &r
			return nil
		}
	}
	return fmt.Errorf("no goal document at %s", path)
}
