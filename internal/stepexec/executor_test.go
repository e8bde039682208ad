package stepexec

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

func TestRunSimpleCommand(t *testing.T) {
	e := New(Config{WorkDir: t.TempDir()})

	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "echo",
		Command: "echo hello",
	}, nil)

	if outcome.Status != domain.StepSucceeded {
		t.Fatalf("got status %s, want succeeded (output: %q)", outcome.Status, outcome.Output)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("got exit code %d, want 0", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Output, "hello") {
		t.Errorf("got output %q, want it to contain %q", outcome.Output, "hello")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	e := New(Config{})

	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "fail",
		Command: "exit 42",
	}, nil)

	if outcome.Status != domain.StepFailed {
		t.Fatalf("got status %s, want failed", outcome.Status)
	}
	if outcome.ExitCode != 42 {
		t.Errorf("got exit code %d, want 42", outcome.ExitCode)
	}
}

func TestRunScopedEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell syntax")
	}
	e := New(Config{})

	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "env",
		Command: "echo $CROSSGATE_TEST_VAR",
		Env:     map[string]string{"CROSSGATE_TEST_VAR": "scoped-value"},
	}, nil)

	if outcome.Status != domain.StepSucceeded {
		t.Fatalf("got status %s, want succeeded", outcome.Status)
	}
	if !strings.Contains(outcome.Output, "scoped-value") {
		t.Errorf("got output %q, want it to contain %q", outcome.Output, "scoped-value")
	}
}

func TestRunCapturesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell syntax")
	}
	e := New(Config{})

	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "stderr",
		Command: "echo to-stderr >&2",
	}, nil)

	if !strings.Contains(outcome.Output, "to-stderr") {
		t.Errorf("got output %q, want stderr captured", outcome.Output)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	e := New(Config{WorkDir: "/this/path/does/not/exist"})

	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "launch",
		Command: "echo hi",
	}, nil)

	if outcome.Status != domain.StepFailed {
		t.Fatalf("got status %s, want failed for unstartable command", outcome.Status)
	}
	if !strings.Contains(outcome.Output, "failed to start") {
		t.Errorf("got output %q, want launch diagnostics", outcome.Output)
	}
}

func TestRunTimeoutMapsToFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell syntax")
	}
	e := New(Config{})

	start := time.Now()
	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "slow",
		Command: "sleep 10",
		Timeout: 100 * time.Millisecond,
	}, nil)

	if outcome.Status != domain.StepFailed {
		t.Fatalf("got status %s, want failed on timeout", outcome.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout did not take effect, elapsed %s", elapsed)
	}
	if !strings.Contains(outcome.Output, "timed out") {
		t.Errorf("got output %q, want timeout diagnostics", outcome.Output)
	}
}

func TestRunTimeoutKillsChildProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell syntax")
	}
	e := New(Config{})

	// The shell forks a child that inherits the output pipes. If only
	// the shell dies on timeout, Run blocks until the child exits.
	start := time.Now()
	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "orphan",
		Command: "sleep 10 & wait",
		Timeout: 100 * time.Millisecond,
	}, nil)

	if outcome.Status != domain.StepFailed {
		t.Fatalf("got status %s, want failed on timeout", outcome.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("child survived the timeout, elapsed %s", elapsed)
	}
}

func TestRunOutputCallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell syntax")
	}
	e := New(Config{})

	var lines []string
	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "lines",
		Command: "echo line1; echo line2",
	}, func(line string) {
		lines = append(lines, line)
	})

	if outcome.Status != domain.StepSucceeded {
		t.Fatalf("got status %s, want succeeded", outcome.Status)
	}
	if len(lines) != 2 {
		t.Errorf("got %d callback lines, want 2: %q", len(lines), lines)
	}
}

func TestRunDurationTracked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell syntax")
	}
	e := New(Config{})

	outcome := e.Run(context.Background(), Spec{
		Stage:   "test",
		Name:    "sleep",
		Command: "sleep 0.1",
	}, nil)

	if outcome.Duration < 100*time.Millisecond {
		t.Errorf("got duration %s, want >= 100ms", outcome.Duration)
	}
}
