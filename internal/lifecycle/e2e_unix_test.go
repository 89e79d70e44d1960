//go:build !windows

package lifecycle

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/claudewrap/internal/daemon"
	"github.com/loykin/claudewrap/internal/pidfile"
)

const helperEnv = "CLAUDEWRAP_LIFECYCLE_HELPER"

// TestMain turns the test binary into a tiny daemon serving /health when
// the helper env var is set.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		runHealthDaemon(os.Args[2:])
		return
	}
	os.Exit(m.Run())
}

func runHealthDaemon(args []string) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 0, "")
	_ = fs.Bool("verbose", false, "")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","mode":"mock"}`))
	})
	srv := &http.Server{Addr: "127.0.0.1:" + strconv.Itoa(*port), Handler: mux, ReadHeaderTimeout: time.Second}
	go func() { _ = srv.ListenAndServe() }()

	select {
	case <-sig:
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		os.Exit(0)
	case <-time.After(30 * time.Second):
		os.Exit(2)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func waitUntil(timeout, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return false
}

func TestEndToEnd(t *testing.T) {
	t.Setenv(helperEnv, "1")
	store := pidfile.New(filepath.Join(t.TempDir(), "e2e.pid"))
	launcher := daemon.New(store,
		daemon.WithExecutable(os.Args[0], daemon.ServeCommand),
		daemon.WithPollInterval(20*time.Millisecond))
	m := New(launcher, store, WithRestartDelay(50*time.Millisecond),
		WithProber(HTTPProber{Timeout: 500 * time.Millisecond}))
	ctx := context.Background()
	port := freePort(t)

	pid, err := m.Start(ctx, daemon.Options{Port: port, Verbose: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = syscall.Kill(pid, syscall.SIGKILL) })

	var st Status
	healthy := waitUntil(5*time.Second, 20*time.Millisecond, func() bool {
		st = m.Status(ctx)
		return st.Health == Healthy
	})
	require.True(t, healthy, "daemon never reported healthy: %+v", st)
	assert.True(t, st.Running)
	assert.Equal(t, pid, st.PID)
	assert.Equal(t, port, st.Port)
	assert.True(t, m.IsRunning())

	newPID, err := m.Restart(ctx, &daemon.Options{Port: port})
	require.NoError(t, err)
	assert.NotEqual(t, pid, newPID)
	t.Cleanup(func() { _ = syscall.Kill(newPID, syscall.SIGKILL) })
	assert.False(t, store.IsProcessAlive(pid), "old daemon is gone")
	require.True(t, waitUntil(5*time.Second, 20*time.Millisecond, func() bool {
		return m.Status(ctx).Health == Healthy
	}), "restarted daemon never reported healthy")

	stopped, err := m.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, Status{}, m.Status(ctx))
	assert.False(t, m.IsRunning())

	stopped, err = m.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, stopped)
}
