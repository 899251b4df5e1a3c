// Package supervisor owns the daemon fleet registry and drives the global
// and per-daemon lifecycle operations (start, stop, restart) plus the
// background watcher that reconciles intended state with observed OS state.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/command"
	"github.com/sentineld/sentineld/internal/config"
	"github.com/sentineld/sentineld/internal/daemon"
	"github.com/sentineld/sentineld/internal/eventbus"
	"github.com/sentineld/sentineld/internal/isolation"
	"github.com/sentineld/sentineld/internal/logfields"
	"github.com/sentineld/sentineld/internal/metrics"
	"github.com/sentineld/sentineld/internal/provision"
	"github.com/sentineld/sentineld/internal/retry"
)

// MaxFailedStarts is the per-daemon restart budget: once a daemon's
// failed-start count (cumulative; a successful start does not reset it)
// reaches this value the watcher stops scheduling restarts for it and it
// settles in ERROR.
const MaxFailedStarts = 3

// WatcherSleepTime is the watcher loop's reconciliation interval.
const WatcherSleepTime = 1 * time.Second

// Supervisor owns the daemon registry. New returns an independent instance
// on every call; nothing enforces a single active instance per process.
// Start resets the registry from configuration and Stop tears every daemon
// down. All exported methods are
// safe to call concurrently from the control API's handlers.
type Supervisor struct {
	configPath string

	executor *command.Executor

	// Interpreter, when non-empty, overrides every constructed daemon's
	// default "python3" interpreter. Exists so tests can exercise the
	// fleet lifecycle without a Python interpreter on the host.
	Interpreter string

	// Recorder receives lifecycle metrics; defaults to a no-op.
	Recorder metrics.Recorder

	// Events carries lifecycle notifications to in-process subscribers and,
	// when configured with a NATS bridge, external consumers. Always
	// non-nil; the bridge itself is optional.
	Events *eventbus.Bus

	// opMu serializes global Start/Stop/Restart against each other: the
	// control plane is single-threaded with respect to its own lifecycle
	// operations even though the HTTP layer may invoke them from any
	// request goroutine.
	opMu sync.Mutex

	mu            sync.Mutex
	daemons       map[string]*daemon.Daemon
	order         []string // insertion order, for stable listing
	watcherWG     sync.WaitGroup
	watcherCancel context.CancelFunc
}

// New returns a Supervisor that loads its fleet from configPath on Start.
func New(configPath string) *Supervisor {
	return &Supervisor{
		configPath: configPath,
		executor:   command.NewExecutor(),
		daemons:    make(map[string]*daemon.Daemon),
		Recorder:   metrics.NoopRecorder{},
		Events:     eventbus.New(),
	}
}

// Start resets the registry, loads configuration, constructs a Daemon per
// entry, attempts to start every daemon concurrently, and launches the
// watcher. It reports success iff at least one daemon started.
func (s *Supervisor) Start(ctx context.Context) (bool, string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	fleet, configs, err := config.Load(s.configPath)
	if err != nil {
		return false, fmt.Sprintf("load configuration: %v", err)
	}
	if err := config.Validate(configs); err != nil {
		return false, fmt.Sprintf("validate configuration: %v", err)
	}

	if fleet.Events.NATSURL != "" {
		bridge, err := eventbus.NewNATSBridge(ctx, fleet.Events.NATSURL)
		if err != nil {
			slog.Warn("eventbus nats bridge unavailable, continuing with in-process events only",
				slog.String("url", fleet.Events.NATSURL), logfields.Error(err))
		} else {
			s.Events.SetBridge(bridge)
		}
	}

	sourceProv := provision.NewSourceProvisioner()
	if initial, err := time.ParseDuration(fleet.SourceRetry.InitialDelay); err == nil {
		if max, err := time.ParseDuration(fleet.SourceRetry.MaxDelay); err == nil {
			sourceProv.Retry = retry.NewPolicy(fleet.SourceRetry.Backoff, initial, max, fleet.SourceRetry.MaxRetries)
		}
	}
	environProv := provision.NewEnvironmentProvisioner(s.executor)
	isolationProvider := isolation.Select(s.executor)

	s.mu.Lock()
	s.daemons = make(map[string]*daemon.Daemon, len(configs))
	s.order = s.order[:0]
	for _, cfg := range configs {
		d := daemon.New(cfg, s.executor, isolationProvider, sourceProv, environProv)
		if s.Interpreter != "" {
			d.Interpreter = s.Interpreter
		}
		s.daemons[cfg.Name] = d
		s.order = append(s.order, cfg.Name)
	}
	daemons := make([]*daemon.Daemon, 0, len(s.daemons))
	for _, d := range s.daemons {
		daemons = append(daemons, d)
	}
	s.mu.Unlock()

	started, failed := startAllConcurrently(ctx, daemons, s.Recorder)
	slog.Info("fleet start complete", slog.Int("started", started), slog.Int("failed", failed))
	s.Recorder.SetDaemonsRunning(started)

	watcherCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.watcherCancel = cancel
	s.mu.Unlock()
	s.watcherWG.Add(1)
	go func() {
		defer s.watcherWG.Done()
		s.watch(watcherCtx)
	}()

	if started == 0 {
		return false, "no daemons started"
	}
	return true, fmt.Sprintf("%d daemon(s) started, %d failed", started, failed)
}

func startAllConcurrently(ctx context.Context, daemons []*daemon.Daemon, recorder metrics.Recorder) (started, failed int) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, d := range daemons {
		wg.Add(1)
		go func(d *daemon.Daemon) {
			defer wg.Done()
			err := d.Start(ctx)
			recorder.IncDaemonStart(d.Name(), err == nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Warn("daemon failed to start", logfields.Daemon(d.Name()), logfields.Error(err))
				return
			}
			started++
		}(d)
	}
	wg.Wait()
	return started, failed
}

// Stop cancels the watcher and awaits its termination, then stops every
// running daemon. A daemon that cannot be stopped is reported but does not
// block the shutdown of its siblings.
func (s *Supervisor) Stop(ctx context.Context) (bool, string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	cancel := s.watcherCancel
	daemons := s.snapshotDaemonsLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.watcherWG.Wait()

	var failures []string
	for _, d := range daemons {
		if !d.IsRunning() {
			continue
		}
		err := d.Stop(ctx)
		s.Recorder.IncDaemonStop(d.Name(), err == nil)
		s.publishLifecycle(ctx, d.Name(), eventbus.EventDaemonStopped, err)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", d.Name(), err))
		}
	}
	s.Recorder.SetDaemonsRunning(0)
	if err := s.Events.ClearBridge(); err != nil {
		slog.Warn("eventbus bridge close failed", logfields.Error(err))
	}

	if len(failures) > 0 {
		return false, fmt.Sprintf("%d daemon(s) failed to stop cleanly: %v", len(failures), failures)
	}
	return true, "all daemons stopped"
}

// Restart stops the fleet, waits delay, and starts it again.
func (s *Supervisor) Restart(ctx context.Context, delay time.Duration) (bool, string) {
	if ok, msg := s.Stop(ctx); !ok {
		slog.Warn("restart: stop reported failures", slog.String("message", msg))
	}
	select {
	case <-ctx.Done():
		return false, "restart canceled during delay"
	case <-time.After(delay):
	}
	return s.Start(ctx)
}

// StartDaemon starts a single daemon by name. A daemon stuck in ERROR has
// its restart budget reset first: an operator's explicit request overrides
// the automatic budget.
func (s *Supervisor) StartDaemon(ctx context.Context, name string) error {
	d, err := s.lookup(name)
	if err != nil {
		return err
	}
	if d.Status() == daemon.StatusError {
		d.ResetFailedStarts()
	}
	err = d.Start(ctx)
	s.Recorder.IncDaemonStart(name, err == nil)
	s.publishLifecycle(ctx, name, eventbus.EventDaemonStarted, err)
	return err
}

// StopDaemon stops a single daemon by name.
func (s *Supervisor) StopDaemon(ctx context.Context, name string) error {
	d, err := s.lookup(name)
	if err != nil {
		return err
	}
	err = d.Stop(ctx)
	s.Recorder.IncDaemonStop(name, err == nil)
	s.publishLifecycle(ctx, name, eventbus.EventDaemonStopped, err)
	return err
}

// RestartDaemon stops (if running) and starts a single daemon by name.
func (s *Supervisor) RestartDaemon(ctx context.Context, name string) error {
	d, err := s.lookup(name)
	if err != nil {
		return err
	}
	if d.IsRunning() {
		if err := d.Stop(ctx); err != nil {
			return err
		}
	}
	if d.Status() == daemon.StatusError {
		d.ResetFailedStarts()
	}
	err = d.Start(ctx)
	s.Recorder.IncDaemonRestart(name, "operator")
	s.publishLifecycle(ctx, name, eventbus.EventDaemonRestarted, err)
	return err
}

// publishLifecycle emits a lifecycle event, carrying err's message (if any)
// as the event detail. Publish errors (e.g. a momentarily unreachable NATS
// bridge) are logged but never surfaced to the caller.
func (s *Supervisor) publishLifecycle(ctx context.Context, name string, typ eventbus.EventType, opErr error) {
	ev := eventbus.Event{Daemon: name, Type: typ}
	if opErr != nil {
		ev.Detail = opErr.Error()
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		slog.Warn("eventbus publish failed", logfields.Daemon(name), logfields.Error(err))
	}
}

func (s *Supervisor) lookup(name string) (*daemon.Daemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.daemons[name]
	if !ok {
		return nil, apperrors.DaemonNotFound(name)
	}
	return d, nil
}

func (s *Supervisor) snapshotDaemonsLocked() []*daemon.Daemon {
	daemons := make([]*daemon.Daemon, 0, len(s.order))
	for _, name := range s.order {
		if d, ok := s.daemons[name]; ok {
			daemons = append(daemons, d)
		}
	}
	return daemons
}

func (s *Supervisor) snapshotDaemons() []*daemon.Daemon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotDaemonsLocked()
}

// GetAllDaemons returns every registered daemon's state in registration
// order, which is the order of the normalized configuration list, not
// necessarily the order of the YAML document.
func (s *Supervisor) GetAllDaemons() []daemon.State {
	daemons := s.snapshotDaemons()
	states := make([]daemon.State, 0, len(daemons))
	for _, d := range daemons {
		states = append(states, d.State())
	}
	return states
}

// GetRunningDaemons returns the state of every daemon currently reporting
// an alive process handle.
func (s *Supervisor) GetRunningDaemons() []daemon.State {
	return s.filterDaemons(func(d *daemon.Daemon) bool { return d.IsRunning() })
}

// GetStoppedDaemons returns the state of every daemon without an alive
// process handle.
func (s *Supervisor) GetStoppedDaemons() []daemon.State {
	return s.filterDaemons(func(d *daemon.Daemon) bool { return !d.IsRunning() })
}

func (s *Supervisor) filterDaemons(keep func(*daemon.Daemon) bool) []daemon.State {
	daemons := s.snapshotDaemons()
	var states []daemon.State
	for _, d := range daemons {
		if keep(d) {
			states = append(states, d.State())
		}
	}
	return states
}

// SearchByName returns the named daemon's state, if registered.
func (s *Supervisor) SearchByName(name string) (daemon.State, bool) {
	s.mu.Lock()
	d, ok := s.daemons[name]
	s.mu.Unlock()
	if !ok {
		return daemon.State{}, false
	}
	return d.State(), true
}

// SearchByPID returns the state of the daemon whose live handle holds pid.
func (s *Supervisor) SearchByPID(pid int) (daemon.State, bool) {
	for _, d := range s.snapshotDaemons() {
		st := d.State()
		if st.PID == pid && st.Running {
			return st, true
		}
	}
	return daemon.State{}, false
}

// SearchByFile returns the state of the daemon configured to run mainFile.
func (s *Supervisor) SearchByFile(mainFile string) (daemon.State, bool) {
	for _, d := range s.snapshotDaemons() {
		if d.Config().MainFile == mainFile {
			return d.State(), true
		}
	}
	return daemon.State{}, false
}

// Names returns the registered daemon names, sorted alphabetically.
func (s *Supervisor) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}
