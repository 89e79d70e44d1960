package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/claudewrap"
)

func main() {
	c := command{open: claudewrap.Open, out: os.Stdout, errOut: os.Stderr}
	root := buildRoot(c)

	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// buildRoot creates the root command and its subcommands.
func buildRoot(c command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(c, globalFlags),
		createStopCommand(c, globalFlags),
		createStatusCommand(c, globalFlags),
		createRestartCommand(c, globalFlags),
		createServeCommand(c, globalFlags),
		createInitCommand(c),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "claudewrap",
		Short: "OpenAI-compatible wrapper daemon for Claude Code",
		Long: `claudewrap runs an OpenAI-compatible HTTP server in front of Claude Code
and manages it as a single background daemon.

Examples:
  claudewrap start --port 8080       # Launch the daemon
  claudewrap status                  # Show pid, port and health
  claudewrap restart --debug         # Restart with debug logging
  claudewrap stop                    # Stop the daemon
  claudewrap serve                   # Run the server in the foreground
  claudewrap init --profile mock     # Write a starter claudewrap.toml`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createStartCommand(c command, g *GlobalFlags) *cobra.Command {
	f := &DaemonFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Long: `Start the wrapper server as a detached background process. Fails when a
daemon recorded in the PID file is still alive.

Examples:
  claudewrap start
  claudewrap start --port 9000 --api-key secret
  claudewrap start --mock --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(cmd, g.ConfigPath, *f)
		},
	}
	bindDaemonFlags(cmd, f)
	return cmd
}

func createStopCommand(c command, g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(cmd.Context(), g.ConfigPath)
		},
	}
}

func createStatusCommand(c command, g *GlobalFlags) *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon status",
		Long: `Show whether the daemon runs, its pid and port, the result of its health
probe and a resource sample. Status never fails because the daemon is down.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), g.ConfigPath, *f)
		},
	}
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print the status as JSON")
	return cmd
}

func createRestartCommand(c command, g *GlobalFlags) *cobra.Command {
	f := &DaemonFlags{}
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		Long: `Stop the daemon if it runs, wait the configured restart delay and start it
again. Without flags the configured options are reused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(cmd, g.ConfigPath, *f)
		},
	}
	bindDaemonFlags(cmd, f)
	return cmd
}

func createServeCommand(c command, g *GlobalFlags) *cobra.Command {
	f := &DaemonFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server in the foreground",
		Long: `Run the wrapper server in the foreground. This is the entry point the
background daemon is launched with; SIGINT and SIGTERM trigger a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(cmd, g.ConfigPath, *f)
		},
	}
	bindDaemonFlags(cmd, f)
	_ = cmd.Flags().MarkHidden("script-path")
	return cmd
}

func createInitCommand(c command) *cobra.Command {
	f := &InitFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Generate a TOML configuration for one of the built-in profiles.

Profiles: default, development, mock, production

Examples:
  claudewrap init
  claudewrap init --profile production --output /etc/claudewrap.toml
  claudewrap init --profile mock --port 9000 --output -   # print to stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Init(*f)
		},
	}
	cmd.Flags().StringVar(&f.Profile, "profile", "default", "configuration profile")
	cmd.Flags().StringVar(&f.Output, "output", "claudewrap.toml", "file to write, - for stdout")
	cmd.Flags().IntVar(&f.Port, "port", 0, "override the profile's port")
	cmd.Flags().BoolVar(&f.Force, "force", false, "overwrite an existing file")
	return cmd
}
