//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs starts the child in a new session so it is detached
// from the controlling terminal and survives the launcher's exit.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// terminate sends the graceful termination signal.
func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
