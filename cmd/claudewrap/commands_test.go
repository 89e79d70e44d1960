package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/claudewrap"
	"github.com/loykin/claudewrap/internal/metrics"
)

// testCommand returns a command whose apps share one temporary PID file.
func testCommand(t *testing.T, executable string) (command, *bytes.Buffer, string) {
	t.Helper()
	// Start exports these for the daemon; keep them scoped to the test.
	t.Setenv(claudewrap.ConfigEnv, "")
	t.Setenv("CLAUDEWRAP_DAEMON_PID_FILE", "")

	pidPath := filepath.Join(t.TempDir(), "claudewrap.pid")
	out := &bytes.Buffer{}
	c := command{
		open: func(path string) (*claudewrap.App, error) {
			cfg, err := claudewrap.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			cfg.Daemon.PIDFile = pidPath
			cfg.Daemon.Executable = executable
			return claudewrap.New(cfg)
		},
		out:    out,
		errOut: out,
	}
	return c, out, pidPath
}

func run(c command, args ...string) error {
	root := buildRoot(c)
	root.SetArgs(args)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	return root.Execute()
}

func TestRootCommands(t *testing.T) {
	c, _, _ := testCommand(t, "")
	root := buildRoot(c)
	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"start", "stop", "status", "restart", "serve", "init"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestStatusStopped(t *testing.T) {
	c, out, pidPath := testCommand(t, "")
	require.NoError(t, run(c, "status"))
	assert.Contains(t, out.String(), "stopped")
	assert.Contains(t, out.String(), pidPath)
}

func TestStatusJSON(t *testing.T) {
	c, out, _ := testCommand(t, "")
	require.NoError(t, run(c, "status", "--json"))
	var st map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, false, st["running"])
}

func TestStopNotRunning(t *testing.T) {
	c, out, _ := testCommand(t, "")
	require.NoError(t, run(c, "stop"))
	assert.Contains(t, out.String(), "not running")
}

func TestStartInvalidPort(t *testing.T) {
	c, _, _ := testCommand(t, "")
	err := run(c, "start", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --port")
}

func TestStartSpawnFailure(t *testing.T) {
	c, _, pidPath := testCommand(t, filepath.Join(t.TempDir(), "no-such-binary"))
	err := run(c, "start", "--port", "9011")
	require.Error(t, err)
	require.ErrorIs(t, err, claudewrap.ErrSpawnFailed)
	_, statErr := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(statErr), "nothing recorded for a failed launch")

	var buf bytes.Buffer
	printError(&buf, err)
	assert.Contains(t, buf.String(), "Failed to launch daemon")
	assert.Contains(t, buf.String(), "Troubleshooting")
}

func TestStartAlreadyRunning(t *testing.T) {
	c, _, pidPath := testCommand(t, "")
	require.NoError(t, os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600))

	err := run(c, "start")
	var are *claudewrap.AlreadyRunningError
	require.True(t, errors.As(err, &are), "got %v", err)
	assert.Equal(t, os.Getpid(), are.PID)

	var buf bytes.Buffer
	printError(&buf, err)
	assert.Contains(t, buf.String(), "Daemon already running")
	assert.Contains(t, buf.String(), fmt.Sprintf("PID %d", os.Getpid()))
}

func TestPrintErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("boom"))
	assert.Contains(t, buf.String(), "Error:")
	assert.Contains(t, buf.String(), "boom")
	assert.NotContains(t, buf.String(), "Troubleshooting")
}

func TestTroubleshootingKinds(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", claudewrap.ErrDaemonTimeout), "Daemon did not exit"},
		{fmt.Errorf("x: %w", claudewrap.ErrRestartFailed), "Failed to restart daemon"},
		{fmt.Errorf("x: %w", claudewrap.ErrStartFailed), "Failed to start daemon"},
		{fmt.Errorf("x: %w", claudewrap.ErrStopFailed), "Failed to stop daemon"},
	}
	for _, tc := range cases {
		headline, hints := troubleshooting(tc.err)
		assert.Equal(t, tc.want, headline)
		assert.NotEmpty(t, hints)
	}
}

func TestPrintStatusRunning(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, claudewrap.Status{
		Running:   true,
		PID:       4242,
		Port:      8080,
		Health:    claudewrap.Healthy,
		Resources: &metrics.ProcessSample{CPUPercent: 1.5, MemoryRSS: 10 << 20, NumThreads: 7},
	}, "/tmp/cw.pid")
	s := buf.String()
	for _, want := range []string{"running", "4242", "8080", "healthy", "1.5%", "10.0 MB", "/tmp/cw.pid"} {
		assert.Contains(t, s, want)
	}
}

func TestMergeOptions(t *testing.T) {
	f := &DaemonFlags{}
	cmd := &cobra.Command{Use: "x"}
	bindDaemonFlags(cmd, f)
	assert.False(t, changedOptions(cmd))

	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9001", "--mock"}))
	assert.True(t, changedOptions(cmd))

	base := claudewrap.Options{Port: 8080, APIKey: "from-config", Verbose: true}
	got, err := mergeOptions(cmd, base, *f)
	require.NoError(t, err)
	assert.Equal(t, claudewrap.Options{Port: 9001, APIKey: "from-config", Verbose: true, Mock: true}, got)
}

func TestInitWritesLoadableConfig(t *testing.T) {
	c, out, _ := testCommand(t, "")
	path := filepath.Join(t.TempDir(), "claudewrap.toml")
	require.NoError(t, run(c, "init", "--profile", "mock", "--port", "9050", "--output", path))
	assert.Contains(t, out.String(), path)

	cfg, err := claudewrap.LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Server.Mock)
	assert.Equal(t, 9050, cfg.Server.Port)

	err = run(c, "init", "--output", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, run(c, "init", "--output", path, "--force"))
}

func TestInitStdout(t *testing.T) {
	c, out, _ := testCommand(t, "")
	require.NoError(t, run(c, "init", "--profile", "production", "--output", "-"))
	assert.Contains(t, out.String(), "change-me")
}
