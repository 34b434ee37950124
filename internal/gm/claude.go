package gm

import (
	"context"
	"os/exec"
	"time"
)

// repairAgentTimeout bounds a one-shot repair agent invocation (conflict
// resolution, build fix, or test fix). These run independently of any
// launched session's own lifetime.
const repairAgentTimeout = 600 * time.Second

// runRepairAgent spawns a one-shot `claude` invocation with the given
// prompt, running from cwd, and reports whether it exited zero. The
// subprocess is killed if it runs past repairAgentTimeout.
func runRepairAgent(ctx context.Context, cwd, prompt string) bool {
	runCtx, cancel := context.WithTimeout(ctx, repairAgentTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "claude", "--allowedTools", "Edit,Write,Bash,Read,Glob,Grep", "-p", prompt)
	cmd.Dir = cwd

	err := cmd.Run()
	return err == nil
}
