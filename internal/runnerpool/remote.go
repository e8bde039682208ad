package runnerpool

import (
	"context"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/pipeline"
	"github.com/crossgate-ci/crossgate/internal/runnerprotocol"
	"github.com/google/uuid"
)

// PoolRunner executes pipeline steps through the dispatcher so they land
// on a runner matching the environment's platform. It satisfies the
// orchestrator's StepRunner contract.
type PoolRunner struct {
	dispatcher *Dispatcher
}

// NewPoolRunner creates a pool-backed step runner
func NewPoolRunner(dispatcher *Dispatcher) *PoolRunner {
	return &PoolRunner{dispatcher: dispatcher}
}

// RunStep submits the step as a job for the environment's platform and
// waits for its result. A step never errors at this level: launch and
// transport failures map to a failed outcome with exit code -1.
func (p *PoolRunner) RunStep(ctx context.Context, env pipeline.Environment, stage pipeline.Stage, step pipeline.Step) domain.StepOutcome {
	job := &runnerprotocol.StepJobMessage{
		JobID:         uuid.NewString(),
		EnvironmentID: env.ID,
		Stage:         stage.Name,
		Step:          step.Name,
		Command:       step.Run,
		Env:           step.Env,
		Timeout:       int(env.Timeout / time.Second),
	}

	start := time.Now()
	resultCh := p.dispatcher.Submit(job, env.Platform)
	p.dispatcher.TryDispatch()

	select {
	case result := <-resultCh:
		status := domain.StepSucceeded
		if result.ExitCode != 0 {
			status = domain.StepFailed
		}
		return domain.StepOutcome{
			Stage:    stage.Name,
			Step:     step.Name,
			Status:   status,
			ExitCode: result.ExitCode,
			Output:   result.Output,
			Duration: time.Duration(result.DurationMs) * time.Millisecond,
		}
	case <-ctx.Done():
		p.dispatcher.Cancel(job.JobID)
		return domain.StepOutcome{
			Stage:    stage.Name,
			Step:     step.Name,
			Status:   domain.StepFailed,
			ExitCode: -1,
			Output:   "step cancelled: " + ctx.Err().Error() + "\n",
			Duration: time.Since(start),
		}
	}
}
