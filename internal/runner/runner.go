// Package runner launches the compiled artifact under OS-level resource
// limits and exposes its merged stdout+stderr and stdin as pipes.
//
// Go's runtime does not let arbitrary code run between fork and exec, so
// RLIMIT_CPU/RLIMIT_AS cannot be installed the way the C++ original does it
// (a few syscalls executed in the child right after fork, before execv).
// Instead the artifact is launched through a short shell wrapper —
// `bash -c "ulimit -t <cpu> -v <kb>; exec ./program"` — the same technique
// the broader example pack's container-execution code uses. The `exec` is
// load-bearing: it replaces bash's own process image, so the resulting
// process's pid still equals its process group id (set via Setsid below),
// which is what lets the session loop kill the whole group with a single
// negative-pid signal exactly as the original relies on.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	shellquote "github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/apex-sandbox/sandboxd/internal/workspace"
)

// Child is a launched, not-yet-reaped artifact process.
type Child struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser
	Stdin  io.WriteCloser
	Pid    int
}

// Launch starts the workspace's compiled artifact as its own session
// leader, with CPU time capped at timeLimitSec and address space capped at
// memoryLimitMB via the shell-ulimit wrapper.
func Launch(ctx context.Context, ws *workspace.Workspace, timeLimitSec, memoryLimitMB int, logger *zap.Logger) (*Child, error) {
	memKB := memoryLimitMB * 1024

	shellCmd := fmt.Sprintf(
		"ulimit -t %d 2>/dev/null; ulimit -v %d 2>/dev/null; exec %s",
		timeLimitSec, memKB, shellquote.Join("./"+workspace.ArtifactName),
	)

	cmd := exec.CommandContext(ctx, "bash", "-c", shellCmd)
	cmd.Dir = ws.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stdoutW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("starting child: %w", err)
	}
	stdoutW.Close()

	logger.Debug("child process created", zap.Int("pid", cmd.Process.Pid))

	return &Child{
		cmd:    cmd,
		Stdout: stdoutR,
		Stdin:  stdin,
		Pid:    cmd.Process.Pid,
	}, nil
}

// Kill sends SIGKILL to the child's entire process group, relying on the
// child being its own group leader (pid == pgid, guaranteed by Setsid).
func Kill(pid int) error {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("killing process group %d: %w", pid, err)
	}
	return nil
}

// Wait reaps the child, returning its exit code using the same
// WIFEXITED/WEXITSTATUS convention as the original: -1 if the process did
// not exit normally (e.g. it was signaled).
func (c *Child) Wait() (exitCode int, err error) {
	waitErr := c.cmd.Wait()
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Exited() {
				return status.ExitStatus(), nil
			}
			return -1, nil
		}
		return -1, nil
	}
	return -1, fmt.Errorf("waiting for child: %w", waitErr)
}
