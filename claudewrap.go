// Package claudewrap wires configuration, the PID store, the daemon
// launcher and the lifecycle orchestrator into a single facade, and runs
// the daemon side (HTTP server, sessions, graceful shutdown) behind the
// serve command.
package claudewrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/claudewrap/internal/config"
	"github.com/loykin/claudewrap/internal/daemon"
	"github.com/loykin/claudewrap/internal/history"
	"github.com/loykin/claudewrap/internal/history/factory"
	"github.com/loykin/claudewrap/internal/lifecycle"
	"github.com/loykin/claudewrap/internal/logger"
	"github.com/loykin/claudewrap/internal/metrics"
	"github.com/loykin/claudewrap/internal/pidfile"
	"github.com/loykin/claudewrap/internal/server"
	"github.com/loykin/claudewrap/internal/session"
	"github.com/loykin/claudewrap/internal/shutdown"
)

// ConfigEnv carries the config file path from the CLI to the daemon it
// spawns.
const ConfigEnv = config.EnvPrefix + "_CONFIG"

// Re-exported types used by the CLI.
type (
	Config  = config.Config
	Options = daemon.Options
	Status  = lifecycle.Status
	Health  = lifecycle.Health

	AlreadyRunningError = daemon.AlreadyRunningError
)

const (
	Healthy   = lifecycle.Healthy
	Unhealthy = lifecycle.Unhealthy
	Unknown   = lifecycle.Unknown
)

var (
	ErrStartFailed   = lifecycle.ErrStartFailed
	ErrStopFailed    = lifecycle.ErrStopFailed
	ErrRestartFailed = lifecycle.ErrRestartFailed
	ErrDaemonTimeout = daemon.ErrDaemonTimeout
	ErrSpawnFailed   = daemon.ErrSpawnFailed
)

// LoadConfig loads defaults, the optional TOML file and CLAUDEWRAP_*
// overrides.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// App is the composition root shared by every CLI command.
type App struct {
	cfg        *Config
	configPath string
	store      *pidfile.Store
	manager    *lifecycle.Manager
	sink       history.Sink
}

// Open loads the configuration at path (empty for defaults only) and
// builds an App from it.
func Open(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	a.configPath = path
	return a, nil
}

// New builds an App from an already loaded configuration; nil selects
// the defaults.
func New(cfg *Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{cfg: cfg, store: pidfile.New(cfg.Daemon.PIDFile)}

	lopts := []daemon.Option{
		daemon.WithStopTimeout(cfg.Daemon.StopTimeout),
		daemon.WithPollInterval(cfg.Daemon.PollInterval),
	}
	if cfg.Daemon.Executable != "" {
		lopts = append(lopts, daemon.WithExecutable(cfg.Daemon.Executable, daemon.ServeCommand))
	}
	launcher := daemon.New(a.store, lopts...)

	mopts := []lifecycle.Option{
		lifecycle.WithBudget(cfg.Lifecycle.Budget),
		lifecycle.WithRestartDelay(cfg.Lifecycle.RestartDelay),
		lifecycle.WithProber(lifecycle.HTTPProber{
			Path:    cfg.Lifecycle.HealthPath,
			Timeout: cfg.Lifecycle.HealthTimeout,
			APIKey:  cfg.Server.APIKey,
		}),
		lifecycle.WithDefaults(a.Options()),
	}
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open history sink: %w", err)
		}
		a.sink = sink
		mopts = append(mopts, lifecycle.WithHistory(sink))
	}
	a.manager = lifecycle.New(launcher, a.store, mopts...)
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *Config { return a.cfg }

// PIDFile returns the path of the PID record.
func (a *App) PIDFile() string { return a.store.Path() }

// Options returns the launch options described by the [server] section.
func (a *App) Options() Options {
	s := a.cfg.Server
	return Options{Port: s.Port, APIKey: s.APIKey, Verbose: s.Verbose, Debug: s.Debug, Mock: s.Mock}
}

// Start launches the daemon in the background.
func (a *App) Start(ctx context.Context, opts Options) (int, error) {
	if err := a.exportEnv(); err != nil {
		return 0, err
	}
	return a.manager.Start(ctx, opts)
}

// Stop terminates the daemon; false means nothing was running.
func (a *App) Stop(ctx context.Context) (bool, error) { return a.manager.Stop(ctx) }

// Restart stops and starts the daemon; nil opts reuse the configured
// options.
func (a *App) Restart(ctx context.Context, opts *Options) (int, error) {
	if err := a.exportEnv(); err != nil {
		return 0, err
	}
	return a.manager.Restart(ctx, opts)
}

// Status never fails.
func (a *App) Status(ctx context.Context) Status { return a.manager.Status(ctx) }

// IsRunning reports whether the recorded daemon is alive.
func (a *App) IsRunning() bool { return a.manager.IsRunning() }

// Close releases the history sink.
func (a *App) Close() error {
	if c, ok := a.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// exportEnv makes the configured environment and the config location
// visible to the spawned daemon.
func (a *App) exportEnv() error {
	if err := a.cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("failed to apply configured environment: %w", err)
	}
	if a.configPath != "" {
		if err := os.Setenv(ConfigEnv, a.configPath); err != nil {
			return err
		}
	}
	return os.Setenv(config.EnvPrefix+"_DAEMON_PID_FILE", a.store.Path())
}

// ServeOptions tune Serve for embedding and tests.
type ServeOptions struct {
	// Listener replaces listening on the configured port.
	Listener net.Listener
	// Exit replaces os.Exit at the end of the shutdown sequence.
	Exit func(code int)
	// Signals replaces SIGINT/SIGTERM when non-nil; an empty slice
	// subscribes to nothing.
	Signals []os.Signal
	// Registerer receives the metrics collectors; nil selects the default
	// registry.
	Registerer prometheus.Registerer
}

// Serve runs the daemon in the foreground until a termination signal, a
// fatal server error or ctx cancellation drives the shutdown sequence.
// With the default Exit it does not return after shutdown.
func (a *App) Serve(ctx context.Context, so ServeOptions) error {
	cfg := a.cfg
	logFile := cfg.Daemon.LogFile
	if logFile == "" {
		logFile = cfg.Log.File
	}
	closer := logger.Setup(logger.Config{
		Verbose:    cfg.Server.Verbose,
		Debug:      cfg.Server.Debug,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer func() { _ = closer.Close() }()

	if err := cfg.ApplyEnv(); err != nil {
		slog.Warn("failed to apply configured environment", "error", err)
	}
	reg := so.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := metrics.Register(reg); err != nil {
		slog.Warn("metrics registration failed", "error", err)
	}

	sessions := session.NewManager(cfg.Session.TTL, cfg.Session.CleanupInterval)

	router := server.NewRouter(sessions, server.Options{APIKey: cfg.Server.APIKey, Mock: cfg.Server.Mock})
	srv := server.NewServer(cfg.Server.Port, router.Handler())

	copts := []shutdown.Option{
		shutdown.WithTimeout(cfg.Shutdown.Timeout),
		shutdown.WithStepTimeout(cfg.Shutdown.StepTimeout),
	}
	if so.Exit != nil {
		copts = append(copts, shutdown.WithExit(so.Exit))
	}
	if so.Signals != nil {
		copts = append(copts, shutdown.WithSignals(so.Signals...))
	}
	coord := shutdown.New(ownRecord{store: a.store}, copts...)
	if err := coord.Setup(srv, sessions); err != nil {
		return err
	}
	defer coord.Stop()
	if err := a.registerHistorySteps(coord); err != nil {
		return err
	}
	// The sweeper starts only once the coordinator owns its shutdown.
	sessions.Start()

	go func() {
		defer coord.Recover()
		var err error
		if so.Listener != nil {
			err = srv.Serve(so.Listener)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			coord.Fatal(fmt.Errorf("http server: %w", err))
		}
	}()
	metrics.SetDaemonRunning(true)
	slog.Info("daemon serving", "pid", os.Getpid(), "port", cfg.Server.Port, "mock", cfg.Server.Mock)

	select {
	case <-coord.Done():
	case <-ctx.Done():
		coord.Initiate("context canceled")
		<-coord.Done()
	}
	metrics.SetDaemonRunning(false)
	return nil
}

func (a *App) registerHistorySteps(coord *shutdown.Coordinator) error {
	if a.sink == nil {
		return nil
	}
	port := a.cfg.Server.Port
	if err := coord.Register(shutdown.Step{Order: 2, Name: "record shutdown", Action: func(ctx context.Context) error {
		return a.sink.Send(ctx, history.NewEvent(history.EventShutdown, os.Getpid(), port, nil))
	}}); err != nil {
		return err
	}
	return coord.Register(shutdown.Step{Order: 4, Name: "close history sink", Action: func(context.Context) error {
		return a.Close()
	}})
}

// ownRecord removes the PID record only while it names this process, so a
// foreground serve never deletes the record of another daemon.
type ownRecord struct{ store *pidfile.Store }

func (o ownRecord) Cleanup() {
	if pid, ok := o.store.Read(); ok && pid == os.Getpid() {
		o.store.Cleanup()
	}
}
