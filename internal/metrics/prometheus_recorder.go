package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once               sync.Once
	daemonStarts       *prom.CounterVec
	daemonStops        *prom.CounterVec
	daemonRestarts     *prom.CounterVec
	restartExhausted   *prom.CounterVec
	daemonsRunning     prom.Gauge
	watcherTick        prom.Histogram
	provisionDuration  *prom.HistogramVec
}

// NewPrometheusRecorder constructs the Prometheus metrics and registers them
// with reg (a fresh registry when reg is nil). Each call registers a new set,
// so calling it twice with the same registry fails on duplicate metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.daemonStarts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sentineld",
			Name:      "daemon_starts_total",
			Help:      "Daemon start attempts by outcome",
		}, []string{"daemon", "result"})
		pr.daemonStops = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sentineld",
			Name:      "daemon_stops_total",
			Help:      "Daemon stop attempts by outcome",
		}, []string{"daemon", "result"})
		pr.daemonRestarts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sentineld",
			Name:      "daemon_restarts_total",
			Help:      "Daemon restarts by trigger (operator or watcher)",
		}, []string{"daemon", "triggered_by"})
		pr.restartExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sentineld",
			Name:      "daemon_restart_budget_exhausted_total",
			Help:      "Count of times a daemon's restart budget was exhausted",
		}, []string{"daemon"})
		pr.daemonsRunning = prom.NewGauge(prom.GaugeOpts{
			Namespace: "sentineld",
			Name:      "daemons_running",
			Help:      "Number of daemons currently observed running",
		})
		pr.watcherTick = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sentineld",
			Name:      "watcher_tick_duration_seconds",
			Help:      "Duration of a single watcher reconciliation pass",
			Buckets:   prom.DefBuckets,
		})
		pr.provisionDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sentineld",
			Name:      "provision_duration_seconds",
			Help:      "Duration of source provisioning (clone/fetch/extract) by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"daemon", "result"})
		reg.MustRegister(pr.daemonStarts, pr.daemonStops, pr.daemonRestarts, pr.restartExhausted,
			pr.daemonsRunning, pr.watcherTick, pr.provisionDuration)
	})
	return pr
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) IncDaemonStart(daemon string, success bool) {
	if p == nil || p.daemonStarts == nil {
		return
	}
	p.daemonStarts.WithLabelValues(daemon, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncDaemonStop(daemon string, success bool) {
	if p == nil || p.daemonStops == nil {
		return
	}
	p.daemonStops.WithLabelValues(daemon, resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncDaemonRestart(daemon string, triggeredBy string) {
	if p == nil || p.daemonRestarts == nil {
		return
	}
	p.daemonRestarts.WithLabelValues(daemon, triggeredBy).Inc()
}

func (p *PrometheusRecorder) IncRestartBudgetExhausted(daemon string) {
	if p == nil || p.restartExhausted == nil {
		return
	}
	p.restartExhausted.WithLabelValues(daemon).Inc()
}

func (p *PrometheusRecorder) SetDaemonsRunning(n int) {
	if p == nil || p.daemonsRunning == nil {
		return
	}
	p.daemonsRunning.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveWatcherTick(d time.Duration) {
	if p == nil || p.watcherTick == nil {
		return
	}
	p.watcherTick.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveProvisionDuration(daemon string, d time.Duration, success bool) {
	if p == nil || p.provisionDuration == nil {
		return
	}
	p.provisionDuration.WithLabelValues(daemon, resultLabel(success)).Observe(d.Seconds())
}
