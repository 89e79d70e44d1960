package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/claudewrap"
)

var (
	colorError = lipgloss.Color("#FF4473")
	colorWarn  = lipgloss.Color("#FFE763")
	colorOK    = lipgloss.Color("#60F281")
	colorDim   = lipgloss.Color("#7F6DFF")
)

// styles are built per writer so color detection follows the destination
// rather than stdout.
type styles struct {
	title, label, ok, warn, bad, box lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		label: r.NewStyle().Width(10).Foreground(colorDim),
		ok:    r.NewStyle().Foreground(colorOK),
		warn:  r.NewStyle().Foreground(colorWarn),
		bad:   r.NewStyle().Foreground(colorError).Bold(true),
		box:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorError).Padding(0, 1),
	}
}

func printStarted(w io.Writer, verb string, pid, port int, pidFile string) {
	s := newStyles(w)
	_, _ = fmt.Fprintf(w, "%s daemon %s (PID %d)\n", s.ok.Render("✓"), verb, pid)
	if port > 0 {
		_, _ = fmt.Fprintf(w, "  %s http://127.0.0.1:%d\n", s.label.Render("URL"), port)
	}
	_, _ = fmt.Fprintf(w, "  %s %s\n", s.label.Render("PID file"), pidFile)
}

func printStopped(w io.Writer, stopped bool) {
	s := newStyles(w)
	if stopped {
		_, _ = fmt.Fprintf(w, "%s daemon stopped\n", s.ok.Render("✓"))
		return
	}
	_, _ = fmt.Fprintln(w, s.warn.Render("daemon is not running"))
}

func printStatus(w io.Writer, st claudewrap.Status, pidFile string) {
	s := newStyles(w)
	row := func(label, value string) {
		_, _ = fmt.Fprintf(w, "  %s %s\n", s.label.Render(label), value)
	}

	_, _ = fmt.Fprintln(w, s.title.Render("claudewrap daemon"))
	if !st.Running {
		row("Status", s.warn.Render("stopped"))
		row("PID file", pidFile)
		return
	}
	row("Status", s.ok.Render("running"))
	row("PID", strconv.Itoa(st.PID))
	if st.Port > 0 {
		row("Port", strconv.Itoa(st.Port))
		row("URL", fmt.Sprintf("http://127.0.0.1:%d", st.Port))
	}
	switch st.Health {
	case claudewrap.Healthy:
		row("Health", s.ok.Render(string(st.Health)))
	case claudewrap.Unhealthy:
		row("Health", s.bad.Render(string(st.Health)))
	default:
		row("Health", s.warn.Render(string(st.Health)))
	}
	if r := st.Resources; r != nil {
		row("CPU", fmt.Sprintf("%.1f%%", r.CPUPercent))
		row("Memory", fmt.Sprintf("%.1f MB", r.MemoryMB()))
		row("Threads", strconv.Itoa(int(r.NumThreads)))
	}
	row("PID file", pidFile)
}

// printError renders lifecycle failures as a troubleshooting block and
// anything else as a single line.
func printError(w io.Writer, err error) {
	s := newStyles(w)
	headline, hints := troubleshooting(err)
	if headline == "" {
		_, _ = fmt.Fprintf(w, "%s %v\n", s.bad.Render("Error:"), err)
		return
	}
	var b strings.Builder
	b.WriteString(s.bad.Render("✗ " + headline))
	b.WriteString("\n\n")
	b.WriteString(err.Error())
	b.WriteString("\n\n")
	b.WriteString(s.title.Render("Troubleshooting:"))
	for _, h := range hints {
		b.WriteString("\n  • ")
		b.WriteString(s.warn.Render(h))
	}
	_, _ = fmt.Fprintln(w, s.box.Render(b.String()))
}

func troubleshooting(err error) (string, []string) {
	var are *claudewrap.AlreadyRunningError
	switch {
	case errors.As(err, &are):
		return "Daemon already running", []string{
			fmt.Sprintf("a daemon with PID %d is alive", are.PID),
			"run `claudewrap status` to inspect it",
			"run `claudewrap stop` or `claudewrap restart` to replace it",
		}
	case errors.Is(err, claudewrap.ErrDaemonTimeout):
		return "Daemon did not exit", []string{
			"the daemon ignored SIGTERM within daemon.stop_timeout",
			"raise daemon.stop_timeout or terminate the process manually",
			"run `claudewrap status` afterwards to clean up the PID file",
		}
	case errors.Is(err, claudewrap.ErrSpawnFailed):
		return "Failed to launch daemon", []string{
			"check that the executable exists and is runnable (daemon.executable, --script-path)",
			"run `claudewrap serve` in the foreground to see startup errors",
		}
	case errors.Is(err, claudewrap.ErrRestartFailed):
		return "Failed to restart daemon", genericHints()
	case errors.Is(err, claudewrap.ErrStartFailed):
		return "Failed to start daemon", genericHints()
	case errors.Is(err, claudewrap.ErrStopFailed):
		return "Failed to stop daemon", []string{
			"check that you own the daemon process",
			"run `claudewrap status` to see whether it is still alive",
		}
	}
	return "", nil
}

func genericHints() []string {
	return []string{
		"make sure the configured port is not already in use",
		"run with --debug and inspect the daemon log (daemon.log_file)",
		"run `claudewrap serve` in the foreground to see startup errors",
	}
}
