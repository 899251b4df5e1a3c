// Package daemon implements the per-process state machine that tracks and
// drives a single supervised child process through its provisioning, spawn,
// and shutdown lifecycle.
package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/command"
	"github.com/sentineld/sentineld/internal/config"
	"github.com/sentineld/sentineld/internal/isolation"
	"github.com/sentineld/sentineld/internal/logfields"
	"github.com/sentineld/sentineld/internal/procstat"
	"github.com/sentineld/sentineld/internal/provision"

	"log/slog"
)

// Status is a daemon's position in its state machine.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPending Status = "pending" // observed dead, about to be restarted by the watcher
	StatusError   Status = "error"   // restart budget exhausted
)

// terminateGrace is how long Stop waits for a graceful terminate before
// escalating to a forceful kill.
const terminateGrace = 3 * time.Second

// State is a value-typed, point-in-time snapshot of a Daemon. It never
// aliases the Daemon's mutable fields.
type State struct {
	Name                  string     `json:"name"`
	Status                Status     `json:"status"`
	Running               bool       `json:"running"`
	PID                   int        `json:"pid,omitempty"`
	MemoryMB              float64    `json:"memory_mb,omitempty"`
	CPUPercent            float64    `json:"cpu_percent,omitempty"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	StartsCount           int        `json:"starts_count"`
	StartAttempts         int        `json:"start_attempts"`
	FailedStarts          int        `json:"failed_starts"`
	EnvCreated            bool       `json:"env_created"`
	InstalledRequirements []string   `json:"installed_requirements,omitempty"`
}

// Daemon drives a single configured child process: provisioning its source
// and environment on first start, spawning it through the host's isolation
// provider, and observing/terminating it thereafter. One Daemon per
// DaemonConfig entry; it is not reused across a supervisor reset.
type Daemon struct {
	cfg config.DaemonConfig

	executor    *command.Executor
	isolation   isolation.Provider
	sourceProv  *provision.SourceProvisioner
	environProv *provision.EnvironmentProvisioner

	// Interpreter is the executable used to run MainFile when no private
	// environment has been created for this daemon. Defaults to "python3";
	// overridable so tests can exercise Start/Stop without requiring a
	// Python interpreter on the host.
	Interpreter string

	mu     sync.Mutex
	status atomic.Value // Status

	handle    *procstat.Handle
	startedAt time.Time

	startsCount           int
	startAttempts         int
	failedStarts          int
	envCreated            bool
	installedRequirements []string
}

// New constructs a Daemon in the STOPPED state for cfg.
func New(cfg config.DaemonConfig, executor *command.Executor, isolationProvider isolation.Provider, sourceProv *provision.SourceProvisioner, environProv *provision.EnvironmentProvisioner) *Daemon {
	d := &Daemon{
		cfg:         cfg,
		executor:    executor,
		isolation:   isolationProvider,
		sourceProv:  sourceProv,
		environProv: environProv,
		Interpreter: "python3",
	}
	d.status.Store(StatusStopped)
	return d
}

// Name returns the daemon's configured name.
func (d *Daemon) Name() string { return d.cfg.Name }

// Config returns the daemon's static configuration.
func (d *Daemon) Config() config.DaemonConfig { return d.cfg }

// Status returns the daemon's current state-machine position.
func (d *Daemon) Status() Status {
	s, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return s
}

// IsRunning reports whether the daemon's process handle is alive. It is
// independent of Status: a daemon whose child exited out-of-band still
// reports Status RUNNING until the watcher observes and reconciles it.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle != nil && d.handle.IsRunning()
}

// KeepRunning reports this daemon's configured auto-restart policy.
func (d *Daemon) KeepRunning() bool { return d.cfg.KeepRunning }

// FailedStarts returns the number of failed starts counted against the
// restart budget since construction or the last ResetFailedStarts; a
// successful start does not reset it.
func (d *Daemon) FailedStarts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failedStarts
}

// ResetFailedStarts clears the restart budget counter. Called by the
// supervisor when an operator explicitly requests a start after the
// daemon stuck in ERROR; the operator's intent overrides the budget.
func (d *Daemon) ResetFailedStarts() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failedStarts = 0
}

// Start provisions and spawns the daemon's child process: the source sync
// runs on every start when SourceURL is set, while requirements are
// installed only until an install has succeeded. It fails with
// DAEMON_ALREADY_RUNNING if the handle already reports alive.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle != nil && d.handle.IsRunning() {
		return apperrors.DaemonAlreadyRunning(d.cfg.Name)
	}

	d.startAttempts++

	if d.cfg.SourceURL != "" {
		parentFolder := filepath.Dir(d.cfg.ProjectFolder)
		targetName := filepath.Base(d.cfg.ProjectFolder)
		if err := d.sourceProv.Provision(d.cfg.Name, d.cfg.SourceURL, parentFolder, targetName, d.cfg.SourceAuth); err != nil {
			d.failedStarts++
			d.status.Store(StatusStopped)
			return apperrors.ProvisioningFailed(d.cfg.Name, err)
		}
	}

	if d.cfg.RequirementsPath != nil && len(d.installedRequirements) == 0 {
		lines, err := d.environProv.InstallRequirements(ctx, d.cfg.Name, d.cfg.ProjectFolder, *d.cfg.RequirementsPath, d.cfg.CreateEnv)
		if err != nil {
			d.failedStarts++
			d.status.Store(StatusStopped)
			return apperrors.EnvironmentFailed(d.cfg.Name, err)
		}
		if len(lines) == 0 {
			d.failedStarts++
			d.status.Store(StatusStopped)
			return apperrors.EnvironmentFailed(d.cfg.Name, nil)
		}
		d.installedRequirements = lines
		d.envCreated = d.cfg.CreateEnv
	}

	spec := command.New(d.pythonExecutable(), append([]string{d.cfg.MainFile}, d.cfg.MainFileArguments...)...)

	handle, err := d.isolation.Launch(spec, d.cfg.ProjectFolder)
	if err != nil {
		d.failedStarts++
		d.status.Store(StatusStopped)
		return err
	}
	if !handle.IsRunning() {
		d.failedStarts++
		d.status.Store(StatusStopped)
		return apperrors.SpawnFailed(d.cfg.Name, nil)
	}

	d.handle = handle
	d.startedAt = time.Now()
	d.startsCount++
	d.status.Store(StatusRunning)

	slog.Info("daemon started", logfields.Daemon(d.cfg.Name), logfields.PID(handle.PID()), logfields.Attempt(d.startAttempts))
	return nil
}

// Stop terminates the daemon's process gracefully, escalating to a
// forceful kill if it is still alive after terminateGrace. It fails with
// DAEMON_NOT_RUNNING if the handle is not alive.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle == nil || !d.handle.IsRunning() {
		return apperrors.DaemonNotRunning(d.cfg.Name)
	}

	handle := d.handle
	if err := handle.Terminate(); err != nil {
		slog.Warn("graceful terminate failed", logfields.Daemon(d.cfg.Name), logfields.Error(err))
	}

	deadline := time.Now().Add(terminateGrace)
	for handle.IsRunning() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break
		case <-time.After(50 * time.Millisecond):
		}
	}

	if handle.IsRunning() {
		slog.Warn("daemon still alive after grace window, killing", logfields.Daemon(d.cfg.Name), logfields.PID(handle.PID()))
		if err := handle.Kill(); err != nil {
			slog.Error("kill failed, daemon may be left running", logfields.Daemon(d.cfg.Name), logfields.Error(err))
		}
	}

	d.handle = nil
	d.status.Store(StatusStopped)
	slog.Info("daemon stopped", logfields.Daemon(d.cfg.Name))
	return nil
}

// MarkPending transitions a daemon the watcher has observed dead, but
// intends to restart, into the transient PENDING state.
func (d *Daemon) MarkPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle = nil
	d.status.Store(StatusPending)
}

// MarkStopped transitions an observed-dead daemon whose policy forbids
// restart into STOPPED.
func (d *Daemon) MarkStopped() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle = nil
	d.status.Store(StatusStopped)
}

// MarkError transitions a daemon whose restart budget is exhausted into
// ERROR; the watcher stops scheduling further restarts for it.
func (d *Daemon) MarkError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle = nil
	d.status.Store(StatusError)
}

// State computes a value-typed snapshot from the live handle and counters.
func (d *Daemon) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := State{
		Name:                  d.cfg.Name,
		Status:                d.Status(),
		StartsCount:           d.startsCount,
		StartAttempts:         d.startAttempts,
		FailedStarts:          d.failedStarts,
		EnvCreated:            d.envCreated,
		InstalledRequirements: append([]string(nil), d.installedRequirements...),
	}

	if d.handle != nil {
		s.Running = d.handle.IsRunning()
		s.PID = d.handle.PID()
		s.MemoryMB = d.handle.MemoryRSS()
		s.CPUPercent = d.handle.CPUPercent()
	}
	if !d.startedAt.IsZero() {
		t := d.startedAt
		s.StartedAt = &t
	}
	return s
}

// venvRelativePythonPath is the interpreter path inside a created virtual
// environment, relative to the daemon's project folder.
const venvRelativePythonPath = "env/bin/python3"

func (d *Daemon) pythonExecutable() string {
	if d.envCreated {
		return filepath.Join(d.cfg.ProjectFolder, venvRelativePythonPath)
	}
	return d.Interpreter
}
