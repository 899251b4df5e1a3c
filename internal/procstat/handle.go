// Package procstat wraps a child process's pid with liveness and resource
// sampling via gopsutil, and scans the OS process table to help recover
// supervisor-owned processes by inspection.
package procstat

import (
	"github.com/shirou/gopsutil/v3/process"
)

// Handle exposes the same observation surface for both isolation variants
// (sandboxed and plain): pid, liveness, termination, and resource samples.
type Handle struct {
	pid int32
}

// NewHandle wraps an already-spawned pid.
func NewHandle(pid int) *Handle {
	return &Handle{pid: int32(pid)}
}

func (h *Handle) PID() int { return int(h.pid) }

// IsRunning reports whether the OS still reports the pid alive. It checks
// the pid only and never re-validates the process identity, so if the OS
// reuses the pid for an unrelated process, IsRunning reports true.
func (h *Handle) IsRunning() bool {
	if h == nil || h.pid <= 0 {
		return false
	}
	running, err := process.PidExists(h.pid)
	if err != nil {
		return false
	}
	return running
}

// MemoryRSS returns resident set size in MB, or 0 if unavailable.
func (h *Handle) MemoryRSS() float64 {
	p, err := process.NewProcess(h.pid)
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return float64(mem.RSS) / (1024 * 1024)
}

// CPUPercent returns the process's CPU usage as a percentage, averaged over
// its lifetime since creation (gopsutil's CPUPercent), or 0 if unavailable.
func (h *Handle) CPUPercent() float64 {
	p, err := process.NewProcess(h.pid)
	if err != nil {
		return 0
	}
	pct, err := p.CPUPercent()
	if err != nil {
		return 0
	}
	return pct
}

// Terminate sends a graceful termination request (SIGTERM on Unix).
func (h *Handle) Terminate() error {
	p, err := process.NewProcess(h.pid)
	if err != nil {
		return nil // already gone
	}
	return p.Terminate()
}

// Kill sends a forceful termination request (SIGKILL on Unix).
func (h *Handle) Kill() error {
	p, err := process.NewProcess(h.pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}
