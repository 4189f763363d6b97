// Package journal records convergence runs, passes and per-action outcomes
// in a local SQLite database under the workspace.
package journal

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultDBName = "goalsync.db"

//go:embed sql/*.sql
var migrationsFS embed.FS

// Journal is an open journal database.
type Journal struct {
	DB  *sql.DB
	Now func() time.Time
}

// Path returns the journal database path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".goalsync", defaultDBName)
}

// Open opens (creating if needed) the journal for a workspace and applies
// migrations.
func Open(workspace string) (*Journal, error) {
	dir := filepath.Dir(Path(workspace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", Path(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	j := &Journal{DB: conn, Now: time.Now}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.DB.Close() }

func (j *Journal) now() string {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func (j *Journal) migrate() error {
	files, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)
	tx, err := j.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, name := range names {
		data, err := migrationsFS.ReadFile("sql/" + name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(data)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Run is one convergence run being recorded. It satisfies the sync core's
// Recorder contract.
type Run struct {
	ID string
	j  *Journal
}

// StartRun inserts a run row and returns its recorder.
func (j *Journal) StartRun(timeframe, repo string, commit bool) (*Run, error) {
	id := uuid.New().String()
	commitFlag := 0
	if commit {
		commitFlag = 1
	}
	_, err := j.DB.Exec(`INSERT INTO runs(id,started_at,timeframe,repo,commit_mode) VALUES (?,?,?,?,?)`,
		id, j.now(), timeframe, repo, commitFlag)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &Run{ID: id, j: j}, nil
}

func (r *Run) Pass(pass, actionCount int) error {
	_, err := r.j.DB.Exec(`INSERT INTO passes(run_id,pass,action_count,ts) VALUES (?,?,?,?)`,
		r.ID, pass, actionCount, r.j.now())
	return err
}

func (r *Run) Action(pass int, action string, actionErr error) error {
	status := "ok"
	var msg any
	if actionErr != nil {
		status = "error"
		msg = actionErr.Error()
	}
	_, err := r.j.DB.Exec(`INSERT INTO actions(run_id,pass,action,status,error,ts) VALUES (?,?,?,?,?,?)`,
		r.ID, pass, action, status, msg, r.j.now())
	return err
}

// Entry is one recorded action outcome for listing.
type Entry struct {
	TS     string `json:"ts"`
	RunID  string `json:"run_id"`
	Pass   int    `json:"pass"`
	Action string `json:"action"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Tail returns the n most recent action entries, newest first.
func (j *Journal) Tail(n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.DB.Query(
		`SELECT ts, run_id, pass, action, status, COALESCE(error,'') FROM actions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TS, &e.RunID, &e.Pass, &e.Action, &e.Status, &e.Error); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
