package daemon

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/loykin/claudewrap/internal/pidfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	return pid
}

type fakeChild struct {
	pid      int
	detached bool
}

func (c *fakeChild) PID() int { return c.pid }
func (c *fakeChild) Detach()  { c.detached = true }

type fakeSpawner struct {
	child *fakeChild
	err   error
	exe   string
	args  []string
}

func (s *fakeSpawner) Spawn(exe string, args []string) (Child, error) {
	s.exe, s.args = exe, args
	if s.err != nil {
		return nil, s.err
	}
	return s.child, nil
}

// brokenStore accepts reads but fails every write.
type brokenStore struct{ *pidfile.Store }

func (brokenStore) SaveRecord(pidfile.Record) error {
	return &pidfile.IOError{Path: "/nowhere", Err: os.ErrPermission}
}

func TestStartSpawnErrors(t *testing.T) {
	store := pidfile.New(filepath.Join(t.TempDir(), "x.pid"))

	sp := &fakeSpawner{err: errors.New("exec format error")}
	_, err := New(store, WithSpawner(sp)).Start(Options{})
	require.ErrorIs(t, err, ErrSpawnFailed)
	assert.Contains(t, err.Error(), "exec format error")

	sp = &fakeSpawner{child: &fakeChild{pid: 0}}
	_, err = New(store, WithSpawner(sp)).Start(Options{})
	require.ErrorIs(t, err, ErrSpawnFailed)
	assert.False(t, sp.child.detached)
	_, ok := store.Read()
	assert.False(t, ok, "nothing recorded for a failed spawn")
}

func TestStartResolvesExecutable(t *testing.T) {
	store := pidfile.New(filepath.Join(t.TempDir(), "x.pid"))
	sp := &fakeSpawner{child: &fakeChild{pid: os.Getpid()}}
	l := New(store, WithSpawner(sp), WithExecutable("/usr/local/bin/claudewrap", "serve"))

	pid, err := l.Start(Options{Port: 8123, Mock: true})
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, "/usr/local/bin/claudewrap", sp.exe)
	assert.Equal(t, []string{"serve", "--port", "8123", "--mock"}, sp.args)
	assert.True(t, sp.child.detached)

	store.Cleanup()
	sp.child = &fakeChild{pid: os.Getpid()}
	_, err = l.Start(Options{ScriptPath: "/opt/other"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/other", sp.exe, "script path overrides the executable")
}

func TestStartSaveFailureIsNotFatal(t *testing.T) {
	store := brokenStore{pidfile.New(filepath.Join(t.TempDir(), "x.pid"))}
	sp := &fakeSpawner{child: &fakeChild{pid: os.Getpid()}}
	pid, err := New(store, WithSpawner(sp)).Start(Options{})
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, sp.child.detached)
}

func TestExecSpawnerMissingBinary(t *testing.T) {
	_, err := ExecSpawner{}.Spawn(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	require.Error(t, err)
}
