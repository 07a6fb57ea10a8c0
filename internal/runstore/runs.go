package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bluestar/internal/workflow"
)

// StatusRunning marks runs without a recorded finish. A run that crashed
// stays running; it is never resumed.
const StatusRunning = "running"

// Run is one recorded workflow run.
type Run struct {
	ID            string
	Repo          string
	SHA           string
	Guidance      string
	Title         string
	Status        string
	Target        string
	Location      string
	MaxIterations int
	Iterations    int
	Enhanced      bool
	FailedStage   string
	ErrorKind     string
	Errors        []string
	Transitions   int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration returns the elapsed run time, or zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

const runColumns = "id, repo, sha, guidance, title, status, target, location, max_iterations, iterations, enhanced, failed_stage, error_kind, errors_json, transitions, started_at, finished_at"

var _ workflow.Tracer = (*Store)(nil)

// RunStarted implements workflow.Tracer.
func (s *Store) RunStarted(ctx context.Context, run workflow.RunInfo) error {
	started := run.Started
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, repo, sha, guidance, status, max_iterations, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Repo,
		run.SHA,
		nullableString(run.Guidance),
		StatusRunning,
		run.MaxIterations,
		formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// StageFinished implements workflow.Tracer.
func (s *Store) StageFinished(ctx context.Context, runID string, t workflow.Transition) error {
	_, err := s.exec(ctx,
		`INSERT INTO transitions (run_id, seq, stage, outcome, detail, started_at, duration_ms)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		t.Seq,
		string(t.Stage),
		t.Outcome,
		nullableString(t.Detail),
		formatTime(t.Started),
		t.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert transition %d: %w", t.Seq, err)
	}
	return nil
}

// RunFinished implements workflow.Tracer.
func (s *Store) RunFinished(ctx context.Context, summary workflow.Summary) error {
	errorsJSON, err := json.Marshal(summary.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	if len(summary.Errors) == 0 {
		errorsJSON = nil
	}
	res, err := s.exec(ctx,
		`UPDATE runs
         SET repo = ?, sha = ?, title = ?, status = ?, target = ?, location = ?,
             iterations = ?, enhanced = ?, failed_stage = ?, error_kind = ?,
             errors_json = ?, transitions = ?, finished_at = ?
         WHERE id = ?`,
		summary.Repo,
		summary.SHA,
		nullableString(summary.Title),
		string(summary.Disposition),
		nullableString(summary.Target),
		nullableString(summary.Location),
		summary.Iterations,
		summary.Enhanced,
		nullableString(string(summary.FailedStage)),
		nullableString(string(summary.ErrorKind)),
		nullableString(string(errorsJSON)),
		summary.Transitions,
		nullableTime(summary.Finished),
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: run %q not found", summary.RunID)
	}
	return nil
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns the run and its transitions in order. A missing run yields
// nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Run, []workflow.Transition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, stage, outcome, detail, started_at, duration_ms
         FROM transitions WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []workflow.Transition
	for rows.Next() {
		var (
			t          workflow.Transition
			stage      string
			detail     sql.NullString
			startedRaw sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&t.Seq, &stage, &t.Outcome, &detail, &startedRaw, &durationMS); err != nil {
			return nil, nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Stage = workflow.StageID(stage)
		t.Detail = detail.String
		t.Started = parseTime(startedRaw)
		t.Duration = time.Duration(durationMS) * time.Millisecond
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &run, transitions, nil
}

// Prune deletes runs that started before cutoff along with their transitions.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		guidance    sql.NullString
		title       sql.NullString
		target      sql.NullString
		location    sql.NullString
		enhanced    int64
		failedStage sql.NullString
		errorKind   sql.NullString
		errorsJSON  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Repo,
		&run.SHA,
		&guidance,
		&title,
		&run.Status,
		&target,
		&location,
		&run.MaxIterations,
		&run.Iterations,
		&enhanced,
		&failedStage,
		&errorKind,
		&errorsJSON,
		&run.Transitions,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}
	run.Guidance = guidance.String
	run.Title = title.String
	run.Target = target.String
	run.Location = location.String
	run.Enhanced = enhanced != 0
	run.FailedStage = failedStage.String
	run.ErrorKind = errorKind.String
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &run.Errors); err != nil {
			return Run{}, fmt.Errorf("decode errors: %w", err)
		}
	}
	return run, nil
}
