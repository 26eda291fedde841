// Package procexec runs external tools as isolated child processes.
//
// Commands are always an argument vector (never a shell string). Standard
// output and standard error are captured separately, an optional wall-clock
// timeout bounds the run, and on timeout or cancellation the child's whole
// process group is killed so converters that fork helpers leave nothing behind.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout marks runs that exceeded their timeout and were killed.
var ErrTimeout = errors.New("process timed out")

// defaultWaitDelay bounds how long Wait keeps draining output pipes after the
// process group was killed.
const defaultWaitDelay = 5 * time.Second

// Result captures the observable outcome of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// StderrText returns trimmed standard error.
func (r Result) StderrText() string {
	return strings.TrimSpace(string(r.Stderr))
}

// StdoutText returns trimmed standard output.
func (r Result) StdoutText() string {
	return strings.TrimSpace(string(r.Stdout))
}

// ExitError reports a process that ran to completion with a non-zero status.
type ExitError struct {
	Binary string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Binary, e.Code)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Binary, e.Code, e.Stderr)
}

// Runner abstracts command execution for testability.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, timeout time.Duration) (Result, error)
}

// CommandRunner executes real processes.
type CommandRunner struct {
	// WaitDelay overrides the post-kill pipe drain bound.
	WaitDelay time.Duration
}

// Run starts binary with args and waits for it. A timeout <= 0 disables the
// deadline; ctx cancellation still kills the process group.
func (r CommandRunner) Run(ctx context.Context, binary string, args []string, timeout time.Duration) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{}, errors.New("binary required")
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("%s: %w", binary, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%s: %w after %s", binary, ErrTimeout, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, &ExitError{Binary: binary, Code: exitErr.ExitCode(), Stderr: result.StderrText()}
	}
	return result, fmt.Errorf("run %s: %w", binary, err)
}

var _ Runner = CommandRunner{}
