//go:build !windows

package stepexec

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// shellCommand wraps the step command in the platform shell. The command
// runs in its own process group and cancellation kills the whole group:
// killing only the shell would leave children holding the output pipes
// open and stall the step past its deadline.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
	return cmd
}
