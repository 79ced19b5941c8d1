// Package toolchain runs the external compiler executables and captures
// their output and exit status.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/autonomy-edge/compilerd/internal/logfields"
)

// Invoker launches external tools synchronously. A nonzero exit status is a
// normal outcome surfaced to the caller as data; only a failure to start the
// process at all is an error.
type Invoker struct {
	// Timeout bounds a single tool invocation when nonzero. The documented
	// baseline is unbounded blocking; deployers opt in via configuration.
	Timeout time.Duration
}

// ErrLaunch marks invocation failures where the tool never ran
// (missing binary, exec permission denied).
var ErrLaunch = errors.New("tool launch failed")

// ErrTimeout marks invocations killed by the configured deadline.
var ErrTimeout = errors.New("tool invocation timed out")

// Run executes exe with args in dir and blocks until the process exits.
// stdout and stderr share one buffer so the captured text interleaves in the
// order the tool emitted it.
func (inv *Invoker) Run(ctx context.Context, exe string, args []string, dir string) (output string, exitCode int, err error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = dir
	// Once the context kills the tool, don't wait for grandchildren that
	// inherited the output pipe; give up on the pipe shortly after.
	cmd.WaitDelay = time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		// A context-killed tool also surfaces as an ExitError ("signal:
		// killed"), so the deadline check must come first.
		if ctx.Err() != nil {
			return buf.String(), -1, fmt.Errorf("%w: %s after %s", ErrTimeout, exe, elapsed)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// The tool ran and exited nonzero: its diagnostics are the
			// error-reporting channel, not this function's error return.
			code := exitErr.ExitCode()
			slog.Debug("Tool exited nonzero",
				logfields.Tool(exe),
				logfields.ExitCode(code),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
			return buf.String(), code, nil
		}
		return "", -1, fmt.Errorf("%w: %s: %v", ErrLaunch, exe, runErr)
	}

	slog.Debug("Tool completed",
		logfields.Tool(exe),
		logfields.ExitCode(0),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return buf.String(), 0, nil
}

// Check reports whether exe exists and is executable. Used by the
// check-tools command and the readiness endpoint.
func (inv *Invoker) Check(exe string) error {
	info, err := os.Stat(exe)
	if err != nil {
		return fmt.Errorf("tool not found at %s: %w", exe, err)
	}
	if info.IsDir() {
		return fmt.Errorf("tool path %s is a directory", exe)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("tool %s is not executable", exe)
	}
	return nil
}
