package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/claudewrap"
)

// DaemonFlags are the launch options accepted by start, restart and serve.
// Unset flags leave the configured values alone.
type DaemonFlags struct {
	Port       int
	APIKey     string
	Verbose    bool
	Debug      bool
	Mock       bool
	ScriptPath string
}

type StatusFlags struct {
	JSON bool
}

type InitFlags struct {
	Profile string
	Output  string
	Port    int
	Force   bool
}

func bindDaemonFlags(cmd *cobra.Command, f *DaemonFlags) {
	cmd.Flags().IntVar(&f.Port, "port", 0, "port the server listens on")
	cmd.Flags().StringVar(&f.APIKey, "api-key", "", "require this bearer key on /v1 routes")
	cmd.Flags().BoolVar(&f.Verbose, "verbose", false, "log at info level")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "log at debug level with source locations")
	cmd.Flags().BoolVar(&f.Mock, "mock", false, "answer with canned responses instead of calling Claude Code")
	cmd.Flags().StringVar(&f.ScriptPath, "script-path", "", "executable to launch instead of this binary")
}

// changedOptions reports whether any daemon flag was given on the command
// line.
func changedOptions(cmd *cobra.Command) bool {
	for _, name := range []string{"port", "api-key", "verbose", "debug", "mock", "script-path"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// mergeOptions overlays the flags that were set on base.
func mergeOptions(cmd *cobra.Command, base claudewrap.Options, f DaemonFlags) (claudewrap.Options, error) {
	fl := cmd.Flags()
	if fl.Changed("port") {
		if f.Port < 1 || f.Port > 65535 {
			return base, fmt.Errorf("invalid --port %d: must be between 1 and 65535", f.Port)
		}
		base.Port = f.Port
	}
	if fl.Changed("api-key") {
		base.APIKey = f.APIKey
	}
	if fl.Changed("verbose") {
		base.Verbose = f.Verbose
	}
	if fl.Changed("debug") {
		base.Debug = f.Debug
	}
	if fl.Changed("mock") {
		base.Mock = f.Mock
	}
	if fl.Changed("script-path") {
		base.ScriptPath = f.ScriptPath
	}
	return base, nil
}
