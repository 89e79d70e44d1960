package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claudewrap",
			Subsystem: "lifecycle",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of lifecycle operations (start, stop, restart, status).",
			Buckets:   []float64{.005, .01, .025, .05, .1, .2, .5, 1, 2.5, 5, 10},
		}, []string{"op"},
	)
	budgetExceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claudewrap",
			Subsystem: "lifecycle",
			Name:      "budget_exceeded_total",
			Help:      "Lifecycle operations that ran longer than the latency budget.",
		}, []string{"op"},
	)
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claudewrap",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by outcome.",
		}, []string{"op", "result"},
	)
	shutdownSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claudewrap",
			Subsystem: "shutdown",
			Name:      "steps_total",
			Help:      "Shutdown steps executed by outcome.",
		}, []string{"step", "result"},
	)
	daemonRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "claudewrap",
			Subsystem: "daemon",
			Name:      "running",
			Help:      "1 while the managed daemon is known to be running.",
		},
	)
	daemonCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "claudewrap",
			Subsystem: "daemon",
			Name:      "cpu_percent",
			Help:      "CPU usage of the daemon process at the last sample.",
		},
	)
	daemonRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "claudewrap",
			Subsystem: "daemon",
			Name:      "memory_rss_bytes",
			Help:      "Resident memory of the daemon process at the last sample.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{operationDuration, budgetExceeded, operations, shutdownSteps, daemonRunning, daemonCPU, daemonRSS}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveOperation(op string, seconds float64) {
	if regOK.Load() {
		operationDuration.WithLabelValues(op).Observe(seconds)
	}
}

func IncBudgetExceeded(op string) {
	if regOK.Load() {
		budgetExceeded.WithLabelValues(op).Inc()
	}
}

func IncOperation(op, result string) {
	if regOK.Load() {
		operations.WithLabelValues(op, result).Inc()
	}
}

func IncShutdownStep(step, result string) {
	if regOK.Load() {
		shutdownSteps.WithLabelValues(step, result).Inc()
	}
}

func SetDaemonRunning(running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		daemonRunning.Set(v)
	}
}

// SetDaemonResources publishes the last process sample.
func SetDaemonResources(s ProcessSample) {
	if regOK.Load() {
		daemonCPU.Set(s.CPUPercent)
		daemonRSS.Set(float64(s.MemoryRSS))
	}
}
