//go:build windows

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// configureDaemonAttrs places the child in its own process group without a
// console window.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
	}
}

// terminate has no graceful signal to deliver on Windows.
func terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
