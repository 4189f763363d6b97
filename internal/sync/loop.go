package sync

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"goalsync/internal/directory"
	"goalsync/internal/goals"
	"goalsync/internal/tracker"
)

// Recorder captures pass and action outcomes; the run journal implements it.
type Recorder interface {
	Pass(pass, actionCount int) error
	Action(pass int, action string, err error) error
}

// Runner drives convergence passes: rebuild desired state, fetch actual
// state, diff, then either print (dry run) or execute and go again. The
// loop exists because some corrections only become possible after earlier
// ones land remotely: a fresh issue needs a number before its linkage can
// converge.
type Runner struct {
	Loader  goals.Loader
	Store   goals.Store
	People  directory.People
	Teams   directory.Teams
	Tracker tracker.Client

	Repo      tracker.Repo
	Timeframe string
	SiteBase  string

	Commit    bool
	Sleep     time.Duration
	MaxPasses int // 0 means unbounded

	Out io.Writer
	Err io.Writer

	Journal Recorder
}

// Run iterates to a fixpoint (empty action set) or a fatal condition. In dry
// run it stops successfully after printing the first pending set. Each pass
// re-derives everything; nothing is carried over between passes.
func (r Runner) Run(ctx context.Context) error {
	for pass := 1; ; pass++ {
		if r.MaxPasses > 0 && pass > r.MaxPasses {
			return fmt.Errorf("no fixpoint after %d passes; concurrent edits or a failing action may be fighting the sync", r.MaxPasses)
		}

		actions, err := r.diffPass(ctx)
		if err != nil {
			return err
		}
		if r.Journal != nil {
			if err := r.Journal.Pass(pass, len(actions)); err != nil {
				return fmt.Errorf("journal: %w", err)
			}
		}

		if len(actions) == 0 {
			fmt.Fprintf(r.Out, "converged: nothing to do (pass %d)\n", pass)
			return nil
		}

		if !r.Commit {
			r.printPending(actions)
			return nil
		}

		exec := Executor{
			Tracker:   r.Tracker,
			Repo:      r.Repo,
			Timeframe: r.Timeframe,
			Docs:      r.Store,
			Sleep:     r.Sleep,
			Out:       r.Out,
		}
		if r.Journal != nil {
			p := pass
			exec.Observer = func(a Action, err error) {
				_ = r.Journal.Action(p, a.String(), err)
			}
		}
		succeeded, err := exec.Execute(ctx, actions)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Out, "pass %d: %d/%d actions applied\n", pass, succeeded, len(actions))
	}
}

// diffPass performs one rebuild-fetch-diff cycle and returns the ordered
// action set.
func (r Runner) diffPass(ctx context.Context) ([]Action, error) {
	docs, err := r.Loader.Load()
	if err != nil {
		return nil, err
	}
	accepted := docs[:0:0]
	for _, doc := range docs {
		if doc.Accepted() {
			accepted = append(accepted, doc)
		}
	}

	builder := Builder{
		Timeframe: r.Timeframe,
		SiteBase:  r.SiteBase,
		People:    r.People,
		Teams:     r.Teams,
	}
	desired, err := builder.Issues(accepted)
	if err != nil {
		return nil, err
	}

	existingLabels, err := r.Tracker.ListLabels(ctx, r.Repo)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	milestoneIssues, err := r.Tracker.ListIssuesInMilestone(ctx, r.Repo, r.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("list issues in milestone %q: %w", r.Timeframe, err)
	}

	set := NewSet()
	differ := Differ{Repo: r.Repo, Timeframe: r.Timeframe, Tracker: r.Tracker}
	differ.Labels(DesiredLabels(TeamsWithAsks(accepted), r.Teams), existingLabels, set)
	if err := differ.Issues(ctx, desired, milestoneIssues, set); err != nil {
		return nil, err
	}
	return set.Actions(), nil
}

func (r Runner) printPending(actions []Action) {
	fmt.Fprintln(r.Err, "Actions to be executed:")
	tw := table.NewWriter()
	tw.SetOutputMirror(r.Err)
	tw.AppendHeader(table.Row{"#", "Action"})
	for i, a := range actions {
		tw.AppendRow(table.Row{i + 1, a.String()})
	}
	tw.Render()
	fmt.Fprintln(r.Err)
	fmt.Fprintln(r.Err, "Use --commit to execute the actions.")
}
