package supervisor

import (
	"context"
	"time"

	"log/slog"

	"github.com/sentineld/sentineld/internal/daemon"
	"github.com/sentineld/sentineld/internal/eventbus"
	"github.com/sentineld/sentineld/internal/logfields"
)

// watch is the Supervisor's cooperative reconciliation loop. Each tick it
// observes every daemon's live handle against its last-known status,
// schedules a restart for any that died while keep_running is set and
// budget remains, and keeps ticking even when no daemon remains running, so
// daemons an operator starts later are watched too. Its only exit is ctx
// cancellation, which it treats as a clean terminal condition, matching the
// watcher task's stop contract.
func (s *Supervisor) watch(ctx context.Context) {
	ticker := time.NewTicker(WatcherSleepTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher canceled")
			return
		case <-ticker.C:
		}

		tickStart := time.Now()
		if !s.reconcileOnce(ctx) {
			slog.Debug("watcher: no daemons running, continuing to wait")
		}
		s.Recorder.ObserveWatcherTick(time.Since(tickStart))
	}
}

// reconcileOnce runs a single watcher iteration and reports whether any
// daemon is still running afterward.
func (s *Supervisor) reconcileOnce(ctx context.Context) bool {
	daemons := s.snapshotDaemons()

	var pending []*daemon.Daemon
	for _, d := range daemons {
		if d.Status() == daemon.StatusPending {
			// left PENDING by a failed restart on an earlier tick
			pending = append(pending, d)
			continue
		}
		if d.Status() != daemon.StatusRunning || d.IsRunning() {
			continue
		}
		slog.Info("daemon observed dead", logfields.Daemon(d.Name()))
		if d.KeepRunning() {
			d.MarkPending()
			pending = append(pending, d)
		} else {
			d.MarkStopped()
		}
	}

	for _, d := range pending {
		if d.FailedStarts() >= MaxFailedStarts {
			d.MarkError()
			s.Recorder.IncRestartBudgetExhausted(d.Name())
			s.publishLifecycle(ctx, d.Name(), eventbus.EventRestartBudgetExceeded, nil)
			slog.Warn("daemon restart budget exhausted", logfields.Daemon(d.Name()), logfields.FailedStarts(d.FailedStarts()))
			continue
		}
		err := d.Start(ctx)
		s.Recorder.IncDaemonRestart(d.Name(), "watcher")
		s.publishLifecycle(ctx, d.Name(), eventbus.EventDaemonRestarted, err)
		if err != nil {
			slog.Warn("watcher restart attempt failed", logfields.Daemon(d.Name()), logfields.Error(err))
			// Start() leaves a failed daemon STOPPED; override back to
			// PENDING (or ERROR, if that failure exhausted the budget) so
			// the next tick keeps retrying until the budget runs out.
			if d.FailedStarts() >= MaxFailedStarts {
				d.MarkError()
			} else {
				d.MarkPending()
			}
		}
	}

	running := 0
	for _, d := range daemons {
		if d.IsRunning() {
			running++
		}
	}
	s.Recorder.SetDaemonsRunning(running)
	return running > 0
}
