package domain

import "time"

// StepOutcome records the result of one executed step
type StepOutcome struct {
	Stage    string
	Step     string
	Status   StepStatus
	ExitCode int
	Output   string
	Duration time.Duration
}

// RunResult is the finalized outcome of one environment's stage sequence.
// Steps holds outcomes for executed steps only; steps skipped after a
// failure never appear.
type RunResult struct {
	EnvironmentID string
	Steps         []StepOutcome
	Status        RunStatus
	FailedStage   string
	FailedStep    string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration returns the wall-clock time the environment run took
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PipelineRun aggregates the environment results of one triggered run
type PipelineRun struct {
	ID         string
	Trigger    Trigger
	Results    []RunResult
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
}

// Aggregate derives the pipeline-wide verdict from terminal environment
// results: succeeded only if every environment succeeded. Re-evaluating
// the same results always yields the same verdict.
func Aggregate(results []RunResult) RunStatus {
	for _, r := range results {
		if r.Status != RunSucceeded {
			return RunFailed
		}
	}
	return RunSucceeded
}
