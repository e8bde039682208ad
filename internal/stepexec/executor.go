// Package stepexec runs a single pipeline step to completion: one external
// command with a scoped environment, captured combined output and an exit
// code mapped to a succeeded/failed outcome.
package stepexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

// Spec describes one step invocation
type Spec struct {
	Stage   string
	Name    string
	Command string
	Env     map[string]string
	Dir     string
	Timeout time.Duration
}

// OutputCallback is called for each line of captured output
type OutputCallback func(line string)

// Config configures the executor
type Config struct {
	// WorkDir is the default working directory for steps that do not
	// declare their own.
	WorkDir string
	Debug   bool
}

// Executor runs steps in the local shell
type Executor struct {
	config Config
}

// New creates a step executor
func New(config Config) *Executor {
	return &Executor{config: config}
}

// Run executes the step and returns its outcome. It never returns an
// error: a command that cannot start, exits non-zero, or exceeds the
// timeout produces a failed outcome with diagnostics in Output. The
// declared variables are set on the child process only; the parent
// environment is untouched on every exit path. onOutput, if non-nil,
// receives each captured line as it arrives.
func (e *Executor) Run(ctx context.Context, spec Spec, onOutput OutputCallback) domain.StepOutcome {
	start := time.Now()

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	if e.config.Debug {
		log.Printf("[stepexec] starting step %s/%s: %q", spec.Stage, spec.Name, spec.Command)
	}

	cmd := shellCommand(ctx, spec.Command)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	} else if e.config.WorkDir != "" {
		cmd.Dir = e.config.WorkDir
	}

	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var output lockedBuilder

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		output.WriteString(fmt.Sprintf("failed to start: %v\n", err))
		return domain.StepOutcome{
			Stage:    spec.Stage,
			Step:     spec.Name,
			Status:   domain.StepFailed,
			ExitCode: -1,
			Output:   output.String(),
			Duration: time.Since(start),
		}
	}

	done := make(chan struct{})
	go func() {
		streamOutput(stdout, &output, onOutput)
		done <- struct{}{}
	}()
	go func() {
		streamOutput(stderr, &output, onOutput)
		done <- struct{}{}
	}()
	<-done
	<-done

	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			output.WriteString(fmt.Sprintf("command failed: %v\n", err))
		}
		if ctx.Err() == context.DeadlineExceeded {
			output.WriteString("step timed out\n")
		}
	}

	status := domain.StepSucceeded
	if exitCode != 0 {
		status = domain.StepFailed
	}

	if e.config.Debug {
		log.Printf("[stepexec] step %s/%s finished in %.2fs with exit code %d",
			spec.Stage, spec.Name, time.Since(start).Seconds(), exitCode)
	}

	return domain.StepOutcome{
		Stage:    spec.Stage,
		Step:     spec.Name,
		Status:   status,
		ExitCode: exitCode,
		Output:   output.String(),
		Duration: time.Since(start),
	}
}

func streamOutput(r io.Reader, output *lockedBuilder, callback OutputCallback) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		output.WriteString(line)
		if callback != nil {
			callback(line)
		}
	}
}

// lockedBuilder interleaves stdout and stderr lines into one capture
type lockedBuilder struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *lockedBuilder) WriteString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.WriteString(s)
}

func (l *lockedBuilder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
