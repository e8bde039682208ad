// Package orchestrator drives pipeline runs: it validates triggers against
// the watch-list, fans out the declared environments as isolated concurrent
// units, enforces fail-fast ordering within each environment, and aggregates
// the per-environment verdicts into one pipeline verdict.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StepRunner executes one step for an environment. Implementations decide
// where the command actually runs (local shell or a remote runner).
type StepRunner interface {
	RunStep(ctx context.Context, env pipeline.Environment, stage pipeline.Stage, step pipeline.Step) domain.StepOutcome
}

// Event types emitted during a run
const (
	EventRunStarted          = "run_started"
	EventEnvironmentStarted  = "environment_started"
	EventStepFinished        = "step_finished"
	EventEnvironmentFinished = "environment_finished"
	EventRunFinalized        = "run_finalized"
)

// Event describes one observable transition during a run
type Event struct {
	Type          string            `json:"type"`
	RunID         string            `json:"run_id"`
	EnvironmentID string            `json:"environment_id,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	Step          string            `json:"step,omitempty"`
	Status        string            `json:"status,omitempty"`
	Trigger       *domain.Trigger   `json:"trigger,omitempty"`
	Result        *domain.RunResult `json:"-"`
}

// EventCallback receives run events as they happen
type EventCallback func(Event)

// Config configures the orchestrator
type Config struct {
	// MaxParallel bounds how many environments execute at once.
	// Zero means no bound.
	MaxParallel int
	Debug       bool
}

// Orchestrator owns the run lifecycle and all RunResults it produces
type Orchestrator struct {
	config  Config
	runner  StepRunner
	onEvent EventCallback

	mu    sync.Mutex
	pipe  *pipeline.Pipeline
	state domain.PipelineState
}

// New creates an orchestrator for the given pipeline definition
func New(p *pipeline.Pipeline, runner StepRunner, config Config) *Orchestrator {
	return &Orchestrator{
		config: config,
		runner: runner,
		pipe:   p,
		state:  domain.StateIdle,
	}
}

// SetOnEvent registers a callback for run events. Must be set before
// Handle is called.
func (o *Orchestrator) SetOnEvent(fn EventCallback) {
	o.onEvent = fn
}

// SetPipeline swaps the pipeline definition. In-flight runs keep the
// definition they started with.
func (o *Orchestrator) SetPipeline(p *pipeline.Pipeline) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pipe = p
}

// Pipeline returns the current pipeline definition
func (o *Orchestrator) Pipeline() *pipeline.Pipeline {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pipe
}

// State returns the orchestrator's current lifecycle state
func (o *Orchestrator) State() domain.PipelineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s domain.PipelineState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) emit(ev Event) {
	if o.onEvent != nil {
		o.onEvent(ev)
	}
}

// Handle processes a trigger. A trigger that does not match the watch-list
// is a silent no-op: no run is produced, the state returns to Idle, and
// Handle returns nil. A matching trigger runs every declared environment
// and returns the finalized run. Step failures never propagate as errors;
// they are captured in the run's results.
func (o *Orchestrator) Handle(ctx context.Context, trigger domain.Trigger) *domain.PipelineRun {
	o.setState(domain.StateTriggered)

	pipe := o.Pipeline()
	if !pipe.MatchesTrigger(trigger) {
		if o.config.Debug {
			log.Printf("[orchestrator] trigger %s/%s does not match watch-list, ignoring",
				trigger.Event, trigger.Branch)
		}
		o.setState(domain.StateIdle)
		return nil
	}

	run := &domain.PipelineRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	o.setState(domain.StateRunning)
	o.emit(Event{Type: EventRunStarted, RunID: run.ID, Trigger: &trigger})

	// One pre-allocated result slot per environment: each goroutine
	// writes its own slot exactly once, so no locking is needed.
	envs := pipe.Environments
	results := make([]domain.RunResult, len(envs))

	g := new(errgroup.Group)
	if o.config.MaxParallel > 0 {
		g.SetLimit(o.config.MaxParallel)
	}
	for i := range envs {
		g.Go(func() error {
			results[i] = o.runEnvironment(ctx, run.ID, envs[i])
			return nil
		})
	}
	// Goroutines never return errors: an environment failure must not
	// cancel its siblings.
	g.Wait()

	run.Results = results
	run.Status = domain.Aggregate(results)
	run.FinishedAt = time.Now()

	o.setState(domain.StateFinalized)
	o.emit(Event{Type: EventRunFinalized, RunID: run.ID, Status: string(run.Status)})
	o.setState(domain.StateIdle)

	return run
}

// runEnvironment drives one environment's stage sequence strictly in
// order, short-circuiting on the first failed step.
func (o *Orchestrator) runEnvironment(ctx context.Context, runID string, env pipeline.Environment) domain.RunResult {
	result := domain.RunResult{
		EnvironmentID: env.ID,
		Status:        domain.RunExecuting,
		StartedAt:     time.Now(),
	}
	o.emit(Event{
		Type:          EventEnvironmentStarted,
		RunID:         runID,
		EnvironmentID: env.ID,
		Status:        string(domain.RunExecuting),
	})

	if env.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}

	result.Status = domain.RunSucceeded
stages:
	for _, stage := range env.Stages {
		for _, step := range stage.Steps {
			outcome := o.runner.RunStep(ctx, env, stage, step)
			result.Steps = append(result.Steps, outcome)
			o.emit(Event{
				Type:          EventStepFinished,
				RunID:         runID,
				EnvironmentID: env.ID,
				Stage:         stage.Name,
				Step:          step.Name,
				Status:        string(outcome.Status),
			})

			if outcome.Status == domain.StepFailed {
				result.Status = domain.RunFailed
				result.FailedStage = stage.Name
				result.FailedStep = step.Name
				if o.config.Debug {
					log.Printf("[orchestrator] %s: step %s/%s failed (exit %d), aborting environment",
						env.ID, stage.Name, step.Name, outcome.ExitCode)
				}
				break stages
			}
		}
	}

	result.FinishedAt = time.Now()
	o.emit(Event{
		Type:          EventEnvironmentFinished,
		RunID:         runID,
		EnvironmentID: env.ID,
		Stage:         result.FailedStage,
		Step:          result.FailedStep,
		Status:        string(result.Status),
		Result:        &result,
	})
	return result
}
