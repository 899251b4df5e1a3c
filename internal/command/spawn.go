package command

import (
	"os"
	"os/exec"

	"github.com/sentineld/sentineld/internal/apperrors"
)

// SpawnDetached launches spec with stdin/stdout/stderr redirected to the
// null device and returns the running *exec.Cmd without blocking on it. It
// reaps the child itself in a background goroutine, so the caller must not
// call Wait on the returned command.
func (e *Executor) SpawnDetached(spec Spec) (*exec.Cmd, error) {
	e.record(spec.String())

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryRuntime, "failed to open null device").Build()
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		_ = devNull.Close()
		return nil, apperrors.SpawnFailed(spec.Executable, err)
	}

	// Reap the process in the background once it exits so it does not
	// linger as a zombie; procstat.Handle samples liveness independently
	// via the OS process table rather than relying on this goroutine.
	go func() {
		_ = cmd.Wait()
		_ = devNull.Close()
	}()

	return cmd, nil
}
