//go:build !windows

package pidfile

import (
	"bufio"
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	sysconf "github.com/tklauser/go-sysconf"
)

// ProcessStartUnix returns the start time of pid as Unix seconds, or 0 when
// it cannot be determined.
func ProcessStartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	if runtime.GOOS == "linux" {
		st, ok := readProcStat(pid)
		if !ok {
			return 0
		}
		return st.startUnix()
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

// probe answers liveness and, when withStart is set, the start time of pid.
// On Linux both come from one read of /proc/<pid>/stat.
func probe(pid int, withStart bool) (alive bool, startUnix int64) {
	if pid <= 0 {
		return false, 0
	}
	if err := syscall.Kill(pid, 0); err != nil && !errors.Is(err, syscall.EPERM) {
		return false, 0
	}
	if runtime.GOOS != "linux" {
		if withStart {
			startUnix = ProcessStartUnix(pid)
		}
		return true, startUnix
	}
	st, ok := readProcStat(pid)
	if !ok {
		// kill succeeded but /proc is unreadable (hidepid); trust kill.
		return true, 0
	}
	if st.state == 'Z' || st.state == 'X' {
		return false, 0
	}
	if withStart {
		startUnix = st.startUnix()
	}
	return true, startUnix
}

// procStat is the part of /proc/<pid>/stat the liveness check reads.
type procStat struct {
	state      byte
	startTicks int64 // clock ticks since boot
}

func readProcStat(pid int) (procStat, bool) {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return procStat{}, false
	}
	return parseProcStat(string(b))
}

// parseProcStat splits after the comm field, which may itself hold spaces
// and parentheses. Fields after it start at state (field 3).
func parseProcStat(line string) (procStat, bool) {
	end := strings.LastIndex(line, ") ")
	if end == -1 {
		return procStat{}, false
	}
	fields := strings.Fields(line[end+2:])
	if len(fields) < 20 || len(fields[0]) != 1 {
		return procStat{}, false
	}
	ticks, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil || ticks <= 0 {
		return procStat{}, false
	}
	return procStat{state: fields[0][0], startTicks: ticks}, true
}

func (s procStat) startUnix() int64 {
	bt := bootTime()
	if bt == 0 {
		return 0
	}
	return bt + s.startTicks/clockTicks()
}

var (
	bootOnce sync.Once
	bootUnix int64
	clkOnce  sync.Once
	clk      int64
)

// bootTime is the btime line of /proc/stat; it does not change while the
// host is up.
func bootTime() int64 {
	bootOnce.Do(func() {
		f, err := os.Open("/proc/stat")
		if err != nil {
			return
		}
		defer func() { _ = f.Close() }()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if v, ok := strings.CutPrefix(sc.Text(), "btime "); ok {
				bootUnix, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
				return
			}
		}
	})
	return bootUnix
}

func clockTicks() int64 {
	clkOnce.Do(func() {
		clk = 100
		if v, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && v > 0 {
			clk = v
		}
	})
	return clk
}
