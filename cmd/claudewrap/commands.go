package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/claudewrap"
	"github.com/loykin/claudewrap/pkg/template"
)

// command carries the dependencies of the CLI handlers so tests can swap
// the app constructor and capture output.
type command struct {
	open   func(path string) (*claudewrap.App, error)
	out    io.Writer
	errOut io.Writer
}

func (c command) Start(cmd *cobra.Command, configPath string, f DaemonFlags) error {
	app, err := c.open(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	opts, err := mergeOptions(cmd, app.Options(), f)
	if err != nil {
		return err
	}
	pid, err := app.Start(cmd.Context(), opts)
	if err != nil {
		return err
	}
	printStarted(c.out, "started", pid, opts.Port, app.PIDFile())
	return nil
}

func (c command) Stop(ctx context.Context, configPath string) error {
	app, err := c.open(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	stopped, err := app.Stop(ctx)
	if err != nil {
		return err
	}
	printStopped(c.out, stopped)
	return nil
}

func (c command) Status(ctx context.Context, configPath string, f StatusFlags) error {
	app, err := c.open(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	st := app.Status(ctx)
	if f.JSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(c.out, st, app.PIDFile())
	return nil
}

func (c command) Restart(cmd *cobra.Command, configPath string, f DaemonFlags) error {
	app, err := c.open(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	var opts *claudewrap.Options
	if changedOptions(cmd) {
		o, err := mergeOptions(cmd, app.Options(), f)
		if err != nil {
			return err
		}
		opts = &o
	}
	pid, err := app.Restart(cmd.Context(), opts)
	if err != nil {
		return err
	}
	port := app.Options().Port
	if opts != nil {
		port = opts.Port
	}
	printStarted(c.out, "restarted", pid, port, app.PIDFile())
	return nil
}

// Serve is the daemon entry point. The config path falls back to the one
// exported by the launching CLI.
func (c command) Serve(cmd *cobra.Command, configPath string, f DaemonFlags) error {
	if configPath == "" {
		configPath = os.Getenv(claudewrap.ConfigEnv)
	}
	cfg, err := claudewrap.LoadConfig(configPath)
	if err != nil {
		return err
	}
	s := cfg.Server
	opts, err := mergeOptions(cmd, claudewrap.Options{
		Port: s.Port, APIKey: s.APIKey, Verbose: s.Verbose, Debug: s.Debug, Mock: s.Mock,
	}, f)
	if err != nil {
		return err
	}
	cfg.Server.Port = opts.Port
	cfg.Server.APIKey = opts.APIKey
	cfg.Server.Verbose = opts.Verbose
	cfg.Server.Debug = opts.Debug
	cfg.Server.Mock = opts.Mock

	app, err := claudewrap.New(cfg)
	if err != nil {
		return err
	}
	return app.Serve(cmd.Context(), claudewrap.ServeOptions{})
}

func (c command) Init(f InitFlags) error {
	b, err := template.NewGenerator().Render(template.Profile(f.Profile), f.Port)
	if err != nil {
		return err
	}
	if f.Output == "-" {
		_, err = c.out.Write(b)
		return err
	}
	if !f.Force {
		if _, err := os.Stat(f.Output); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", f.Output)
		}
	}
	if err := os.WriteFile(f.Output, b, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	_, _ = fmt.Fprintf(c.out, "wrote %s profile to %s\n", f.Profile, f.Output)
	return nil
}
