package orchestrator

import (
	"context"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/pipeline"
	"github.com/crossgate-ci/crossgate/internal/stepexec"
)

// LocalRunner executes steps in the local shell, ignoring the
// environment's platform binding. It is the single-machine mode used by
// `crossgate run` and the embedded fallback when no remote runner of the
// required platform is connected.
type LocalRunner struct {
	exec *stepexec.Executor
}

// NewLocalRunner creates a runner backed by the given executor
func NewLocalRunner(exec *stepexec.Executor) *LocalRunner {
	return &LocalRunner{exec: exec}
}

// RunStep implements StepRunner
func (r *LocalRunner) RunStep(ctx context.Context, env pipeline.Environment, stage pipeline.Stage, step pipeline.Step) domain.StepOutcome {
	return r.exec.Run(ctx, stepexec.Spec{
		Stage:   stage.Name,
		Name:    step.Name,
		Command: step.Run,
		Env:     step.Env,
	}, nil)
}
