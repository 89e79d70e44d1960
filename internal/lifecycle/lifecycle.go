// Package lifecycle is the single surface the CLI uses to start, stop,
// restart and inspect the background daemon.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/claudewrap/internal/daemon"
	"github.com/loykin/claudewrap/internal/history"
	"github.com/loykin/claudewrap/internal/metrics"
)

const (
	OpStart   = "start"
	OpStop    = "stop"
	OpRestart = "restart"
	OpStatus  = "status"
)

const (
	// DefaultBudget is the latency target of every operation. Exceeding it
	// is only reported.
	DefaultBudget = 200 * time.Millisecond
	// DefaultRestartDelay separates stop and start during Restart.
	DefaultRestartDelay = 500 * time.Millisecond
	// DefaultPort is probed when the record carries no port.
	DefaultPort = 8080
)

// Launcher is the daemon side of the orchestrator; *daemon.Launcher
// satisfies it.
type Launcher interface {
	Start(opts daemon.Options) (int, error)
	Stop(ctx context.Context) (bool, error)
	Status() daemon.Status
}

// Store answers whether the managed process is actually running.
// *pidfile.Store satisfies it.
type Store interface {
	ValidateAndCleanup() bool
	Read() (int, bool)
	IsProcessAlive(pid int) bool
}

// Status is the orchestrator's read-only view of the daemon.
type Status struct {
	Running   bool                   `json:"running"`
	PID       int                    `json:"pid,omitempty"`
	Port      int                    `json:"port,omitempty"`
	Health    Health                 `json:"health,omitempty"`
	Resources *metrics.ProcessSample `json:"resources,omitempty"`
}

// Manager composes the launcher and the PID store.
type Manager struct {
	launcher     Launcher
	store        Store
	prober       Prober
	budget       time.Duration
	restartDelay time.Duration
	defaults     daemon.Options
	sinks        []history.Sink
	logger       *slog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

func WithBudget(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.budget = d
		}
	}
}

func WithRestartDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.restartDelay = d
		}
	}
}

func WithProber(p Prober) Option {
	return func(m *Manager) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithDefaults sets the options Restart uses when it is given none.
func WithDefaults(opts daemon.Options) Option { return func(m *Manager) { m.defaults = opts } }

// WithHistory adds sinks that receive start, stop and restart events.
func WithHistory(sinks ...history.Sink) Option {
	return func(m *Manager) {
		for _, s := range sinks {
			if s != nil {
				m.sinks = append(m.sinks, s)
			}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New builds a Manager.
func New(launcher Launcher, store Store, opts ...Option) *Manager {
	m := &Manager{
		launcher:     launcher,
		store:        store,
		prober:       HTTPProber{},
		budget:       DefaultBudget,
		restartDelay: DefaultRestartDelay,
		logger:       slog.Default(),
		sleep:        sleepCtx,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Defaults returns the options used by Restart(nil).
func (m *Manager) Defaults() daemon.Options { return m.defaults }

// IsRunning reports whether the recorded daemon is alive.
func (m *Manager) IsRunning() bool { return m.store.ValidateAndCleanup() }

// Start launches the daemon. Launcher errors of a known kind are returned
// unchanged; anything else is wrapped as ErrStartFailed.
func (m *Manager) Start(ctx context.Context, opts daemon.Options) (pid int, err error) {
	defer m.observe(OpStart, time.Now(), &err)

	if pid, ok := m.runningPID(); ok {
		return 0, &daemon.AlreadyRunningError{PID: pid}
	}
	pid, err = m.launcher.Start(opts)
	if err != nil {
		if !daemon.IsLifecycleError(err) {
			err = &OpError{Op: OpStart, Err: err}
		}
		m.emit(ctx, history.NewEvent(history.EventStart, 0, opts.Port, err))
		return 0, err
	}
	metrics.SetDaemonRunning(true)
	m.emit(ctx, history.NewEvent(history.EventStart, pid, opts.Port, nil))
	return pid, nil
}

// runningPID reads the record once and probes that pid, so the pid
// reported is the one found alive. A stale record is removed.
func (m *Manager) runningPID() (int, bool) {
	if pid, ok := m.store.Read(); ok && m.store.IsProcessAlive(pid) {
		return pid, true
	}
	m.store.ValidateAndCleanup()
	return 0, false
}

// Stop terminates the daemon. It reports false, without touching the
// launcher, when nothing is running.
func (m *Manager) Stop(ctx context.Context) (stopped bool, err error) {
	defer m.observe(OpStop, time.Now(), &err)

	if !m.IsRunning() {
		return false, nil
	}
	st := m.launcher.Status()
	stopped, err = m.launcher.Stop(ctx)
	if err != nil {
		err = &OpError{Op: OpStop, Err: err}
		m.emit(ctx, history.NewEvent(history.EventStop, st.PID, st.Port, err))
		return false, err
	}
	if stopped {
		metrics.SetDaemonRunning(false)
		m.emit(ctx, history.NewEvent(history.EventStop, st.PID, st.Port, nil))
	}
	return stopped, nil
}

// Status never fails. When the daemon runs its health endpoint is probed
// and a resource sample is attached when one can be taken.
func (m *Manager) Status(ctx context.Context) (st Status) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("status probe failed", "error", &OpError{Op: OpStatus, Err: fmt.Errorf("panic: %v", r)})
			st = Status{}
		}
		m.observe(OpStatus, start, &err)
	}()

	ds := m.launcher.Status()
	if !ds.Running {
		metrics.SetDaemonRunning(false)
		return Status{}
	}
	metrics.SetDaemonRunning(true)
	st = Status{Running: true, PID: ds.PID, Port: ds.Port}
	port := ds.Port
	if port <= 0 {
		port = DefaultPort
	}
	st.Health = m.prober.Probe(ctx, port)

	if sample, serr := metrics.SampleProcess(ds.PID); serr == nil {
		metrics.SetDaemonResources(sample)
		st.Resources = &sample
	} else {
		m.logger.Debug("could not sample daemon resources", "pid", ds.PID, "error", serr)
	}
	return st
}

// Restart stops the daemon if it runs, waits the restart delay and starts
// it again with opts, or with the defaults when opts is nil.
func (m *Manager) Restart(ctx context.Context, opts *daemon.Options) (pid int, err error) {
	defer m.observe(OpRestart, time.Now(), &err)

	if _, serr := m.Stop(ctx); serr != nil {
		err = &OpError{Op: OpRestart, Err: serr}
		m.emit(ctx, history.NewEvent(history.EventRestart, 0, 0, err))
		return 0, err
	}
	if serr := m.sleep(ctx, m.restartDelay); serr != nil {
		return 0, &OpError{Op: OpRestart, Err: serr}
	}

	o := m.defaults
	if opts != nil {
		o = *opts
	}
	pid, err = m.Start(ctx, o)
	if err != nil {
		err = &OpError{Op: OpRestart, Err: err}
		m.emit(ctx, history.NewEvent(history.EventRestart, 0, o.Port, err))
		return 0, err
	}
	m.emit(ctx, history.NewEvent(history.EventRestart, pid, o.Port, nil))
	return pid, nil
}

func (m *Manager) observe(op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	metrics.ObserveOperation(op, elapsed.Seconds())
	result := "ok"
	if errp != nil && *errp != nil {
		result = "error"
	}
	metrics.IncOperation(op, result)
	if elapsed > m.budget {
		metrics.IncBudgetExceeded(op)
		m.logger.Warn("lifecycle operation exceeded latency budget", "op", op, "duration", elapsed, "budget", m.budget)
		return
	}
	m.logger.Debug("lifecycle operation finished", "op", op, "duration", elapsed, "result", result)
}

func (m *Manager) emit(ctx context.Context, e history.Event) {
	for _, s := range m.sinks {
		if err := s.Send(ctx, e); err != nil {
			m.logger.Warn("history sink failed", "event", e.Type, "error", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
