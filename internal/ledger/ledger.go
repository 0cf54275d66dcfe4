// Package ledger keeps a persistent history of engine invocations in a
// SQLite database, so status survives across processes.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/scale"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	experiment      TEXT    NOT NULL,
	scale           INTEGER NOT NULL,
	param_path      TEXT    NOT NULL,
	started_at      TEXT    NOT NULL,
	wall_ms         INTEGER NOT NULL,
	elapsed_seconds INTEGER NOT NULL,
	exit_code       INTEGER NOT NULL,
	timed_out       INTEGER NOT NULL,
	error           TEXT
);
CREATE INDEX IF NOT EXISTS runs_experiment_scale ON runs (experiment, scale, started_at);
`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded engine invocation.
type Run struct {
	ID             string
	Experiment     string
	Scale          scale.Scale
	ParamPath      string
	StartedAt      time.Time
	Wall           time.Duration
	ElapsedSeconds int64
	ExitCode       int
	TimedOut       bool
	// Error is set when the engine could not be invoked at all.
	Error string
}

// Succeeded reports whether the engine ran and exited cleanly.
func (r Run) Succeeded() bool {
	return r.Error == "" && r.ExitCode == 0 && !r.TimedOut
}

type runRow struct {
	ID             string         `db:"id"`
	Experiment     string         `db:"experiment"`
	Scale          int            `db:"scale"`
	ParamPath      string         `db:"param_path"`
	StartedAt      string         `db:"started_at"`
	WallMillis     int64          `db:"wall_ms"`
	ElapsedSeconds int64          `db:"elapsed_seconds"`
	ExitCode       int            `db:"exit_code"`
	TimedOut       bool           `db:"timed_out"`
	Error          sql.NullString `db:"error"`
}

func (r runRow) toRun() (Run, error) {
	started, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad start time: %w", r.ID, err)
	}
	return Run{
		ID:             r.ID,
		Experiment:     r.Experiment,
		Scale:          scale.Scale(r.Scale),
		ParamPath:      r.ParamPath,
		StartedAt:      started,
		Wall:           time.Duration(r.WallMillis) * time.Millisecond,
		ElapsedSeconds: r.ElapsedSeconds,
		ExitCode:       r.ExitCode,
		TimedOut:       r.TimedOut,
		Error:          r.Error.String,
	}, nil
}

// Ledger is a SQLite-backed experiment.Recorder.
type Ledger struct {
	db *sqlx.DB
}

var _ experiment.Recorder = (*Ledger)(nil)

// Open opens or creates the database at path, creating its parent
// directory if needed.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// RunAll records from several goroutines; SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Run ledger opened.", "path", path)
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun stores rec under a fresh ID.
func (l *Ledger) RecordRun(ctx context.Context, rec experiment.RunRecord) error {
	row := runRow{
		ID:             uuid.NewString(),
		Experiment:     rec.Experiment,
		Scale:          int(rec.Scale),
		ParamPath:      rec.Outcome.ParamPath,
		StartedAt:      rec.StartedAt.UTC().Format(timeLayout),
		WallMillis:     rec.Outcome.Wall.Milliseconds(),
		ElapsedSeconds: rec.Outcome.ElapsedSeconds,
		ExitCode:       rec.Outcome.ExitCode,
		TimedOut:       rec.Outcome.TimedOut,
	}
	if rec.Err != nil {
		row.Error = sql.NullString{String: rec.Err.Error(), Valid: true}
		row.ElapsedSeconds = engine.UnknownElapsed
	}

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, experiment, scale, param_path, started_at, wall_ms, elapsed_seconds, exit_code, timed_out, error)
		VALUES (:id, :experiment, :scale, :param_path, :started_at, :wall_ms, :elapsed_seconds, :exit_code, :timed_out, :error)
	`, row)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Run recorded.", "run_id", row.ID, "experiment", row.Experiment, "scale", rec.Scale.String())
	return nil
}

// History returns the runs of an experiment, oldest first. A zero scale
// selects every scale.
func (l *Ledger) History(ctx context.Context, experimentName string, s scale.Scale) ([]Run, error) {
	var rows []runRow
	err := l.db.SelectContext(ctx, &rows, `
		SELECT id, experiment, scale, param_path, started_at, wall_ms, elapsed_seconds, exit_code, timed_out, error
		FROM runs
		WHERE experiment = ? AND (? = 0 OR scale = ?)
		ORDER BY started_at, rowid
	`, experimentName, int(s), int(s))
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	return toRuns(rows)
}

// Latest returns the most recent run of every scale of an experiment.
func (l *Ledger) Latest(ctx context.Context, experimentName string) (map[scale.Scale]Run, error) {
	runs, err := l.History(ctx, experimentName, 0)
	if err != nil {
		return nil, err
	}
	latest := make(map[scale.Scale]Run)
	for _, r := range runs {
		latest[r.Scale] = r
	}
	return latest, nil
}

func toRuns(rows []runRow) ([]Run, error) {
	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}
