package command

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/sentineld/sentineld/internal/apperrors"
)

const historyLimit = 256

// Executor runs Specs, either blocking with captured output or detached.
// A single instance is meant to be shared across the supervisor; its
// command history is append-only and safe for concurrent use.
type Executor struct {
	mu      sync.Mutex
	history []string
}

// NewExecutor returns a ready-to-use Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// History returns a snapshot of the most recently executed command strings,
// for observability only; it is never replayed.
func (e *Executor) History() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Executor) record(cmd string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, cmd)
	if len(e.history) > historyLimit {
		e.history = e.history[len(e.history)-historyLimit:]
	}
}

// ExecuteBlocking runs spec to completion, streaming stdout line-by-line
// into an in-memory buffer (optionally mirrored to the logger), and
// enforcing timeout (0 meaning none). On timeout the process is killed and
// apperrors.CategoryTimeout is returned.
func (e *Executor) ExecuteBlocking(ctx context.Context, spec Spec, showOutput bool, timeout time.Duration) (int, string, error) {
	e.record(spec.String())

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Executable, spec.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, "", apperrors.Wrap(err, apperrors.CategoryRuntime, "failed to open stdout pipe").Build()
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return -1, "", apperrors.Wrap(err, apperrors.CategoryRuntime, "failed to start command").Build()
	}

	var lines []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if showOutput {
			slog.Debug("command output", "line", line)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		slog.Warn("command output scan error", "error", err)
	}

	waitErr := cmd.Wait()
	output := joinLines(lines)

	if ctx.Err() == context.DeadlineExceeded {
		return -1, output, apperrors.Timeout(spec.String(), waitErr)
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return -1, output, apperrors.Wrap(waitErr, apperrors.CategoryRuntime, "command failed").Build()
		}
	}
	return exitCode, output, nil
}

func joinLines(lines []string) string {
	total := 0
	for _, l := range lines {
		total += len(l) + 1
	}
	buf := make([]byte, 0, total)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}
