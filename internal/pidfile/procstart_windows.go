//go:build windows

package pidfile

import "syscall"

// ProcessStartUnix returns the creation time of pid as Unix seconds, or 0.
func ProcessStartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return 0
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	return creationUnix(h)
}
