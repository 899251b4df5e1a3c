// Package isolation selects and drives a daemon's process-launch strategy:
// a sandboxed variant when the OS supports it and the sandbox binary is
// present, falling back to a plain spawn otherwise.
package isolation

import (
	"log/slog"
	"runtime"

	"github.com/sentineld/sentineld/internal/command"
	"github.com/sentineld/sentineld/internal/procstat"
)

// Provider launches a daemon's command and returns a handle exposing the
// same liveness/resource-sampling surface regardless of which variant ran.
type Provider interface {
	Launch(spec command.Spec, projectFolder string) (*procstat.Handle, error)
	// Name identifies the variant for logging ("sandbox" or "plain").
	Name() string
}

// Select probes the host for sandbox support and returns the sandboxed
// provider when available, otherwise the plain fallback; on Windows the
// fallback is logged as a warning. Probing happens once at supervisor
// startup; the result is shared across all daemons.
func Select(executor *command.Executor) Provider {
	sandbox := NewSandboxProvider(executor)
	if sandbox.Available() {
		return sandbox
	}
	if runtime.GOOS == "windows" {
		slog.Warn("sandbox executable not found, falling back to plain spawn")
	}
	return NewPlainProvider(executor)
}
