//go:build windows

package pidfile

import "syscall"

const stillActive = 259

// probe opens the process for query once and reads both its exit code and
// its creation time.
func probe(pid int, withStart bool) (alive bool, startUnix int64) {
	if pid <= 0 {
		return false, 0
	}
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false, 0
	}
	defer func() { _ = syscall.CloseHandle(h) }()

	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err == nil && code != stillActive {
		return false, 0
	}
	if withStart {
		startUnix = creationUnix(h)
	}
	return true, startUnix
}

func creationUnix(h syscall.Handle) int64 {
	var creation, exit, kernel, user syscall.Filetime
	if err := syscall.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return 0
	}
	return creation.Nanoseconds() / 1e9
}
