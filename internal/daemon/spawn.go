package daemon

import (
	"os"
	"os/exec"
)

// Child is a spawned process the launcher no longer needs to supervise.
type Child interface {
	PID() int
	// Detach lets the child outlive the launcher without being waited on
	// synchronously.
	Detach()
}

// Spawner starts a detached process.
type Spawner interface {
	Spawn(exe string, args []string) (Child, error)
}

// ExecSpawner spawns through os/exec with the child in its own session,
// stdio on the null device and the parent's environment inherited verbatim.
type ExecSpawner struct{}

// Spawn implements Spawner.
func (ExecSpawner) Spawn(exe string, args []string) (Child, error) {
	// #nosec G204 -- executable is the wrapper itself or an explicit override
	cmd := exec.Command(exe, args...)
	configureDaemonAttrs(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execChild{cmd: cmd}, nil
}

type execChild struct {
	cmd *exec.Cmd
}

func (c *execChild) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Detach reaps the child in the background. If the launcher exits first the
// child is re-parented and keeps running; if the launcher lives on, the
// child never lingers as a zombie.
func (c *execChild) Detach() {
	go func() { _ = c.cmd.Wait() }()
}
