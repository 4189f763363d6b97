// Package directory holds the static person and team registries consumed by
// the desired-state builder.
package directory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Person maps a goal-document owner username to a tracker handle.
type Person struct {
	GitHub string `yaml:"github"`
}

// People is the username directory. Absent entries are not an error; owners
// without a directory entry are dropped from the assignee set.
type People map[string]Person

// Lookup resolves a username. The second return is false when the person is
// not in the directory.
func (p People) Lookup(username string) (Person, bool) {
	person, ok := p[username]
	return person, ok
}

// LoadPeople reads the people directory from a YAML file keyed by username.
func LoadPeople(path string) (People, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read people directory: %w", err)
	}
	var people People
	if err := yaml.Unmarshal(data, &people); err != nil {
		return nil, fmt.Errorf("invalid people directory yaml: %w", err)
	}
	return people, nil
}

// Member is a team member with an optional lead flag.
type Member struct {
	GitHub string `yaml:"github"`
	Lead   bool   `yaml:"lead,omitempty"`
}

// Team is a registry entry: label slug, display link, members.
type Team struct {
	Name    string   `yaml:"-"`
	Label   string   `yaml:"label,omitempty"`
	Link    string   `yaml:"link,omitempty"`
	Members []Member `yaml:"members,omitempty"`
}

// GhLabel is the tracker label slug for the team.
func (t Team) GhLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return "T-" + t.Name
}

// NameAndLink renders the team as a markdown link when a link is registered.
func (t Team) NameAndLink() string {
	if t.Link == "" {
		return t.Name
	}
	return fmt.Sprintf("[%s](%s)", t.Name, t.Link)
}

// Teams is the team registry keyed by team name.
type Teams map[string]Team

// Get resolves a team by name.
func (t Teams) Get(name string) (Team, bool) {
	team, ok := t[name]
	if ok && team.Name == "" {
		team.Name = name
	}
	return team, ok
}

// LoadTeams reads the team registry from a YAML file keyed by team name.
func LoadTeams(path string) (Teams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team registry: %w", err)
	}
	var teams Teams
	if err := yaml.Unmarshal(data, &teams); err != nil {
		return nil, fmt.Errorf("invalid team registry yaml: %w", err)
	}
	for name, team := range teams {
		team.Name = name
		teams[name] = team
	}
	return teams, nil
}
