package metrics

import (
	"testing"
	"time"
)

type fakeRecorder struct {
	starts    map[string]int
	stops     map[string]int
	restarts  map[string]int
	exhausted map[string]int
	running   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{starts: map[string]int{}, stops: map[string]int{}, restarts: map[string]int{}, exhausted: map[string]int{}}
}

func (f *fakeRecorder) IncDaemonStart(daemon string, _ bool)    { f.starts[daemon]++ }
func (f *fakeRecorder) IncDaemonStop(daemon string, _ bool)     { f.stops[daemon]++ }
func (f *fakeRecorder) IncDaemonRestart(daemon string, _ string) { f.restarts[daemon]++ }
func (f *fakeRecorder) IncRestartBudgetExhausted(daemon string) { f.exhausted[daemon]++ }
func (f *fakeRecorder) SetDaemonsRunning(n int)                  { f.running = n }
func (f *fakeRecorder) ObserveWatcherTick(time.Duration)         {}
func (f *fakeRecorder) ObserveProvisionDuration(string, time.Duration, bool) {}

func TestFakeRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = newFakeRecorder()
	r.IncDaemonStart("alpha", true)
	r.IncDaemonStop("alpha", true)
	r.IncDaemonRestart("alpha", "watcher")
	r.IncRestartBudgetExhausted("alpha")
	r.SetDaemonsRunning(1)

	fr := r.(*fakeRecorder)
	if fr.starts["alpha"] != 1 || fr.stops["alpha"] != 1 || fr.restarts["alpha"] != 1 || fr.exhausted["alpha"] != 1 || fr.running != 1 {
		t.Fatalf("unexpected recorder state: %+v", fr)
	}
}
