package runnerpool

import (
	"context"
	"log"
	"runtime"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runnerprotocol"
	"github.com/crossgate-ci/crossgate/internal/stepexec"
)

// LocalPlatform returns the platform of the host this process runs on
func LocalPlatform() domain.Platform {
	if runtime.GOOS == "windows" {
		return domain.PlatformWindows
	}
	return domain.PlatformLinux
}

// NewEmbeddedRunner returns an EmbeddedRunnerFunc that executes step jobs
// with the local executor. It serves as the fallback when no remote runner
// for the host platform is connected.
func NewEmbeddedRunner(executor *stepexec.Executor) EmbeddedRunnerFunc {
	return func(job *runnerprotocol.StepJobMessage) *StepResult {
		log.Printf("[coordinator] running job %s on embedded runner", job.JobID)

		spec := stepexec.Spec{
			Stage:   job.Stage,
			Name:    job.Step,
			Command: job.Command,
			Env:     job.Env,
			Timeout: time.Duration(job.Timeout) * time.Second,
		}
		outcome := executor.Run(context.Background(), spec, nil)

		return &StepResult{
			JobID:      job.JobID,
			ExitCode:   outcome.ExitCode,
			Output:     outcome.Output,
			DurationMs: outcome.Duration.Milliseconds(),
		}
	}
}
