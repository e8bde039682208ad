// Package runstore provides SQLite-backed persistence of finalized
// pipeline runs so per-step diagnostics stay inspectable after a run.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	_ "modernc.org/sqlite"
)

// Store persists finalized pipeline runs
type Store struct {
	db *sql.DB
}

// New creates a Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists a finalized run with all environment results and
// step outcomes. Runs are written once and never updated.
func (s *Store) SaveRun(run *domain.PipelineRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, event, branch, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Trigger.Event), run.Trigger.Branch, string(run.Status),
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, r := range run.Results {
		_, err = tx.Exec(`
			INSERT INTO environment_results (run_id, environment_id, status, failed_stage, failed_step, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, r.EnvironmentID, string(r.Status), r.FailedStage, r.FailedStep,
			r.StartedAt, r.FinishedAt)
		if err != nil {
			return fmt.Errorf("inserting environment result: %w", err)
		}

		for seq, step := range r.Steps {
			_, err = tx.Exec(`
				INSERT INTO step_outcomes (run_id, environment_id, seq, stage, step, status, exit_code, output, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, r.EnvironmentID, seq, step.Stage, step.Step, string(step.Status),
				step.ExitCode, step.Output, step.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("inserting step outcome: %w", err)
			}
		}
	}

	return tx.Commit()
}

// RunSummary is a run row without its nested results
type RunSummary struct {
	ID         string
	Event      domain.EventKind
	Branch     string
	Status     domain.RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, event, branch, status, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var event, status string
		if err := rows.Scan(&r.ID, &event, &r.Branch, &status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Event = domain.EventKind(event)
		r.Status = domain.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a full run with environment results and step outcomes
func (s *Store) GetRun(id string) (*domain.PipelineRun, error) {
	row := s.db.QueryRow(`
		SELECT id, event, branch, status, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	var run domain.PipelineRun
	var event, status string
	if err := row.Scan(&run.ID, &event, &run.Trigger.Branch, &status, &run.StartedAt, &run.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, err
	}
	run.Trigger.Event = domain.EventKind(event)
	run.Status = domain.RunStatus(status)

	envRows, err := s.db.Query(`
		SELECT environment_id, status, failed_stage, failed_step, started_at, finished_at
		FROM environment_results WHERE run_id = ? ORDER BY environment_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer envRows.Close()

	for envRows.Next() {
		var r domain.RunResult
		var envStatus string
		var failedStage, failedStep sql.NullString
		if err := envRows.Scan(&r.EnvironmentID, &envStatus, &failedStage, &failedStep, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Status = domain.RunStatus(envStatus)
		r.FailedStage = failedStage.String
		r.FailedStep = failedStep.String

		r.Steps, err = s.stepOutcomes(id, r.EnvironmentID)
		if err != nil {
			return nil, err
		}
		run.Results = append(run.Results, r)
	}
	return &run, envRows.Err()
}

func (s *Store) stepOutcomes(runID, environmentID string) ([]domain.StepOutcome, error) {
	rows, err := s.db.Query(`
		SELECT stage, step, status, exit_code, output, duration_ms
		FROM step_outcomes WHERE run_id = ? AND environment_id = ? ORDER BY seq
	`, runID, environmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.StepOutcome
	for rows.Next() {
		var o domain.StepOutcome
		var status string
		var durationMs int64
		if err := rows.Scan(&o.Stage, &o.Step, &status, &o.ExitCode, &o.Output, &durationMs); err != nil {
			return nil, err
		}
		o.Status = domain.StepStatus(status)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		steps = append(steps, o)
	}
	return steps, rows.Err()
}
