//go:build !windows

package shutdown

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalTriggersShutdown(t *testing.T) {
	rec := &exitRecorder{}
	c := New(nil, WithExit(rec.exit), WithSignals(syscall.SIGUSR1))
	srv := &fakeServer{}
	require.NoError(t, c.Setup(srv, nil))
	defer c.Stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	wait(t, c)
	assert.Equal(t, []int{0}, rec.get())
	assert.Equal(t, int32(1), srv.calls.Load())
}
