package sync

import (
	"fmt"
	"io"

	"goalsync/internal/directory"
	"goalsync/internal/goals"
)

// WriteSignoffComment emits the per-team sign-off checklist for every team
// with an ask in the corpus: leads are required, other members optional.
func WriteSignoffComment(w io.Writer, docs []goals.Document, teams directory.Teams) error {
	for _, name := range TeamsWithAsks(docs) {
		team, ok := teams.Get(name)
		if !ok {
			return fmt.Errorf("team %q has asks but is not in the registry", name)
		}
		fmt.Fprintf(w, "\n## %s\n\n", team.Name)
		for _, m := range team.Members {
			if m.Lead {
				fmt.Fprintf(w, "* [ ] @%s (required, lead)\n", m.GitHub)
			}
		}
		for _, m := range team.Members {
			if !m.Lead {
				fmt.Fprintf(w, "* [ ] %s (optional)\n", m.GitHub)
			}
		}
	}
	return nil
}
