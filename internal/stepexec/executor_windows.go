//go:build windows

package stepexec

import (
	"context"
	"os/exec"
	"time"
)

// shellCommand wraps the step command in the platform shell. WaitDelay
// bounds how long a cancelled step may hold its output pipes open.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "cmd", "/C", command)
	cmd.WaitDelay = 5 * time.Second
	return cmd
}
