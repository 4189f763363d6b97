package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"goalsync/internal/config"
	"goalsync/internal/directory"
	"goalsync/internal/goals"
	"goalsync/internal/journal"
	"goalsync/internal/sync"
	"goalsync/internal/tracker"
	"goalsync/internal/trackerd"
)

var rootCmd = &cobra.Command{
	Use:   "goalsync",
	Short: "Goal document to issue tracker sync",
	Long: `goalsync reconciles a directory of goal documents against the issue
tracker. Each run rebuilds the desired state from the documents, compares it
with the tracker, and prints or executes the corrections. Runs are idempotent:
once tracker and documents agree, a run performs no actions.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GOALSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindEnv("token", "GOALSYNC_TOKEN")
}

func registerCommands() {
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(teamsCmd())
	rootCmd.AddCommand(trackerdCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(configCmd())
}

func syncCmd() *cobra.Command {
	var commit, noJournal bool
	var repoFlag string
	var sleepMS, maxPasses int
	cmd := &cobra.Command{
		Use:   "sync <timeframe-dir>",
		Short: "Reconcile goal documents with the tracker",
		Long: `Diffs the goal documents under <timeframe-dir> against the tracker
milestone named after the directory. Without --commit the pending actions are
printed; with --commit they are executed and the diff is repeated until it
comes up empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeframe, err := goals.ValidateDir(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			repoSlug := cfg.Repo
			if repoFlag != "" {
				repoSlug = repoFlag
			}
			repo, err := tracker.ParseRepo(repoSlug)
			if err != nil {
				return err
			}
			people, err := directory.LoadPeople(cfg.Directories.People)
			if err != nil {
				return err
			}
			teams, err := directory.LoadTeams(cfg.Directories.Teams)
			if err != nil {
				return err
			}
			client, err := trackerClient(cfg)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("sleep-ms") {
				sleepMS = cfg.Sync.SleepMS
			}
			if !cmd.Flags().Changed("max-passes") {
				maxPasses = cfg.Sync.MaxPasses
			}

			dir := goals.Dir{Path: args[0]}
			runner := sync.Runner{
				Loader:    dir,
				Store:     dir,
				People:    people,
				Teams:     teams,
				Tracker:   client,
				Repo:      repo,
				Timeframe: timeframe,
				SiteBase:  cfg.SiteBase,
				Commit:    commit,
				Sleep:     time.Duration(sleepMS) * time.Millisecond,
				MaxPasses: maxPasses,
				Out:       os.Stdout,
				Err:       os.Stderr,
			}

			if !noJournal {
				j, err := journal.Open(viper.GetString("workspace"))
				if err != nil {
					return err
				}
				defer j.Close()
				run, err := j.StartRun(timeframe, repoSlug, commit)
				if err != nil {
					return err
				}
				runner.Journal = run
			}
			return runner.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "execute the actions instead of printing them")
	cmd.Flags().StringVar(&repoFlag, "repo", "", "tracker repository slug (overrides config)")
	cmd.Flags().IntVar(&sleepMS, "sleep-ms", 500, "pause between actions in milliseconds")
	cmd.Flags().IntVar(&maxPasses, "max-passes", 0, "abort after this many passes (0 = unbounded)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "skip recording the run in the journal")
	return cmd
}

func teamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams <timeframe-dir>",
		Short: "Print the per-team sign-off checklist",
		Long: `Builds the sign-off comment for every team that has an ask in the
accepted goal documents: leads are required check boxes, other members
optional.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := goals.ValidateDir(args[0]); err != nil {
				return err
			}
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			teams, err := directory.LoadTeams(cfg.Directories.Teams)
			if err != nil {
				return err
			}
			docs, err := goals.Dir{Path: args[0]}.Load()
			if err != nil {
				return err
			}
			accepted := docs[:0:0]
			for _, doc := range docs {
				if doc.Accepted() {
					accepted = append(accepted, doc)
				}
			}
			return sync.WriteSignoffComment(os.Stdout, accepted, teams)
		},
	}
	return cmd
}

func trackerdCmd() *cobra.Command {
	var addr, token, milestones string
	cmd := &cobra.Command{
		Use:   "trackerd",
		Short: "Serve a local tracker for rehearsal runs",
		Long: `Starts an in-memory server speaking the same API subset the sync
uses, so a run can be rehearsed end to end against a scratch tracker. Point
the sync at it with tracker.base_url in goalsync.yml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg != nil {
				if addr == "" {
					addr = cfg.Trackerd.Addr
				}
				if token == "" {
					token = cfg.Trackerd.Token
				}
			}
			if addr == "" {
				addr = "127.0.0.1:8080"
			}
			titles := trackerd.MilestoneTitles(milestones)
			if len(titles) == 0 {
				return fmt.Errorf("--milestones requires at least one milestone title")
			}
			handler, err := trackerd.New(trackerd.Config{
				Store:      tracker.NewMemory(),
				Milestones: titles,
				Token:      token,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving tracker API on http://%s (milestones: %s)\n", addr, strings.Join(titles, ", "))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token")
	cmd.Flags().StringVar(&milestones, "milestones", "", "comma separated milestone titles, in numbering order")
	_ = cmd.MarkFlagRequired("milestones")
	return cmd
}

func journalCmd() *cobra.Command {
	j := &cobra.Command{
		Use:   "journal",
		Short: "Run journal",
		Long:  "Every sync run records its passes and per-action outcomes in a local journal.",
	}
	j.AddCommand(journalTailCmd())
	return j
}

func journalTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent action outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer j.Close()
			entries, err := j.Tail(n)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"TS", "Run", "Pass", "Action", "Status"})
			for _, e := range entries {
				status := e.Status
				if e.Error != "" {
					status = fmt.Sprintf("%s: %s", e.Status, e.Error)
				}
				tw.AppendRow(table.Row{e.TS, shortID(e.RunID), e.Pass, e.Action, status})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default goalsync.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(repo)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "tracker repository slug")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate goalsync.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

// --- helpers ---

// trackerClient builds the REST client from config: a static token (config or
// GOALSYNC_TOKEN) or app credentials.
func trackerClient(cfg *config.Config) (tracker.Client, error) {
	tokens, err := tokenSource(cfg)
	if err != nil {
		return nil, err
	}
	return tracker.NewREST(cfg.Tracker.BaseURL, tokens), nil
}

func tokenSource(cfg *config.Config) (tracker.TokenSource, error) {
	if cfg.Tracker.App.ID != "" {
		pem, err := os.ReadFile(cfg.Tracker.App.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read app private key: %w", err)
		}
		key, err := tracker.ParseAppKey(pem)
		if err != nil {
			return nil, err
		}
		return &tracker.AppTokens{
			AppID:          cfg.Tracker.App.ID,
			InstallationID: cfg.Tracker.App.InstallationID,
			Key:            key,
			BaseURL:        cfg.Tracker.BaseURL,
		}, nil
	}
	token := cfg.Tracker.Token
	if token == "" {
		token = viper.GetString("token")
	}
	return tracker.StaticToken(token), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
