package exec

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/dpipe/dpipe/internal/logger"
)

// ShellExecutor spawns node commands as local subprocesses.
type ShellExecutor struct {
	Dir string
	Env []string
}

// NewShellExecutor initializes a ShellExecutor with the specified working directory and environment variables.
func NewShellExecutor(workingDir string, env []string) *ShellExecutor {
	return &ShellExecutor{
		Dir: workingDir,
		Env: env,
	}
}

// ExecuteContext executes a command bound to a context, forwarding stdout and
// stderr to the given writers: cancelling the context signals the spawned
// process to terminate.
func (e ShellExecutor) ExecuteContext(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = e.Env
	cmd.Stderr = stderr
	cmd.Stdout = stdout
	cmd.Dir = e.Dir

	logger.Debugf("Exec cmd: %s", cmd)

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("failed to execute command: %s: %w", cmd, err)
	}

	return nil
}
