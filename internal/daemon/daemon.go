// Package daemon spawns exactly one detached background instance of the
// server and stops it again, using the PID store to prevent duplicate
// starts and to track the running instance.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/loykin/claudewrap/internal/pidfile"
)

const (
	// DefaultStopTimeout bounds how long Stop waits for the daemon to exit.
	DefaultStopTimeout = 10 * time.Second
	// DefaultPollInterval is the liveness re-probe interval used by Stop.
	DefaultPollInterval = 100 * time.Millisecond
	// ServeCommand is the subcommand the daemon entry point runs.
	ServeCommand = "serve"
)

var (
	// ErrSpawnFailed means the OS did not produce a usable child process.
	ErrSpawnFailed = errors.New("failed to spawn daemon process")
	// ErrDaemonTimeout means the daemon did not exit within the stop timeout.
	ErrDaemonTimeout = errors.New("daemon did not exit within timeout")
)

// AlreadyRunningError is returned by Start while a live record exists.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("daemon already running with PID %d", e.PID)
}

// IsLifecycleError reports whether err is one of the launcher's own
// error kinds.
func IsLifecycleError(err error) bool {
	var are *AlreadyRunningError
	return errors.As(err, &are) || errors.Is(err, ErrSpawnFailed) || errors.Is(err, ErrDaemonTimeout)
}

// Options is the launch configuration for one daemon instance.
type Options struct {
	Port       int
	APIKey     string
	Verbose    bool
	Debug      bool
	Mock       bool
	ScriptPath string // overrides the executable to launch
}

// Status is a read-only snapshot of the managed daemon.
type Status struct {
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
	Port    int  `json:"port,omitempty"`
}

// PIDStore is the subset of *pidfile.Store used by the launcher.
type PIDStore interface {
	ValidateAndCleanup() bool
	Read() (int, bool)
	Record() (pidfile.Record, bool)
	SaveRecord(rec pidfile.Record) error
	IsProcessAlive(pid int) bool
	Cleanup()
}

// Launcher starts and stops the daemon process.
type Launcher struct {
	store        PIDStore
	spawner      Spawner
	terminate    func(pid int) error
	executable   string
	argsPrefix   []string
	stopTimeout  time.Duration
	pollInterval time.Duration
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithSpawner replaces the process-spawn primitive.
func WithSpawner(s Spawner) Option { return func(l *Launcher) { l.spawner = s } }

// WithTerminate replaces the graceful termination signal sender.
func WithTerminate(fn func(pid int) error) Option { return func(l *Launcher) { l.terminate = fn } }

// WithExecutable sets the default executable used when Options.ScriptPath
// is empty, and the argument prefix placed before the flags.
func WithExecutable(path string, prefix ...string) Option {
	return func(l *Launcher) {
		l.executable = path
		l.argsPrefix = append([]string(nil), prefix...)
	}
}

// WithStopTimeout sets the overall ceiling of Stop's exit wait.
func WithStopTimeout(d time.Duration) Option {
	return func(l *Launcher) {
		if d > 0 {
			l.stopTimeout = d
		}
	}
}

// WithPollInterval sets Stop's liveness re-probe interval.
func WithPollInterval(d time.Duration) Option {
	return func(l *Launcher) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// New builds a Launcher around store.
func New(store PIDStore, opts ...Option) *Launcher {
	l := &Launcher{
		store:        store,
		spawner:      ExecSpawner{},
		terminate:    terminate,
		argsPrefix:   []string{ServeCommand},
		stopTimeout:  DefaultStopTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// BuildArgs maps options to daemon flags. Absent or false options
// contribute nothing.
func BuildArgs(opts Options) []string {
	var args []string
	if opts.Port > 0 {
		args = append(args, "--port", strconv.Itoa(opts.Port))
	}
	if opts.APIKey != "" {
		args = append(args, "--api-key", opts.APIKey)
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if opts.Debug {
		args = append(args, "--debug")
	}
	if opts.Mock {
		args = append(args, "--mock")
	}
	return args
}

func (l *Launcher) resolveExecutable(opts Options) (string, error) {
	if opts.ScriptPath != "" {
		return opts.ScriptPath, nil
	}
	if l.executable != "" {
		return l.executable, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return exe, nil
}

// Start spawns the daemon and records its pid.
func (l *Launcher) Start(opts Options) (int, error) {
	if l.store.ValidateAndCleanup() {
		pid, _ := l.store.Read()
		return 0, &AlreadyRunningError{PID: pid}
	}

	exe, err := l.resolveExecutable(opts)
	if err != nil {
		return 0, err
	}
	args := append(append([]string(nil), l.argsPrefix...), BuildArgs(opts)...)

	child, err := l.spawner.Spawn(exe, args)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}
	pid := child.PID()
	if pid <= 0 {
		return 0, ErrSpawnFailed
	}

	rec := pidfile.Record{PID: pid, Port: opts.Port, StartUnix: pidfile.ProcessStartUnix(pid)}
	if err := l.store.SaveRecord(rec); err != nil {
		// The process exists, so the daemon counts as started.
		slog.Warn("daemon started but pid file could not be written", "pid", pid, "error", err)
	}

	child.Detach()
	slog.Info("daemon started", "pid", pid, "executable", exe, "port", opts.Port)
	return pid, nil
}

// Stop signals the daemon and waits for it to exit. It reports false when
// nothing was running.
func (l *Launcher) Stop(ctx context.Context) (bool, error) {
	pid, ok := l.store.Read()
	if !ok {
		return false, nil
	}
	if !l.store.IsProcessAlive(pid) {
		slog.Info("daemon not running, removing stale pid file", "pid", pid)
		l.store.Cleanup()
		return false, nil
	}

	if err := l.terminate(pid); err != nil {
		if !l.store.IsProcessAlive(pid) {
			l.store.Cleanup()
			return false, nil
		}
		return false, fmt.Errorf("failed to signal daemon %d: %w", pid, err)
	}
	slog.Debug("termination signal sent", "pid", pid)

	if err := l.waitExit(ctx, pid); err != nil {
		return false, err
	}
	l.store.Cleanup()
	slog.Info("daemon stopped", "pid", pid)
	return true, nil
}

func (l *Launcher) waitExit(ctx context.Context, pid int) error {
	timeout := time.NewTimer(l.stopTimeout)
	defer timeout.Stop()
	tick := time.NewTicker(l.pollInterval)
	defer tick.Stop()
	for {
		if !l.store.IsProcessAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return fmt.Errorf("%w (pid %d, waited %s)", ErrDaemonTimeout, pid, l.stopTimeout)
		case <-tick.C:
		}
	}
}

// IsRunning reports whether the recorded daemon is alive, repairing stale
// records on the way.
func (l *Launcher) IsRunning() bool { return l.store.ValidateAndCleanup() }

// Status never fails; unexpected errors map to "not running".
func (l *Launcher) Status() (st Status) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("daemon status probe failed", "panic", r)
			st = Status{}
		}
	}()
	rec, ok := l.store.Record()
	if !ok {
		return Status{}
	}
	if !l.store.ValidateAndCleanup() {
		return Status{}
	}
	return Status{Running: true, PID: rec.PID, Port: rec.Port}
}
