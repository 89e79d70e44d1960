// Package pidfile is the single source of truth for "is there a managed
// daemon, and what is its PID". Every read and write of the PID file goes
// through a Store so stale-record repair is applied consistently.
package pidfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultName is the PID file name used under the OS temp directory.
const DefaultName = "claudewrap.pid"

// ErrInvalidPID is returned by Save when the pid is not a positive integer.
var ErrInvalidPID = errors.New("pid must be a positive integer")

// IOError wraps a filesystem failure while writing the PID file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("write pid file %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// Record is the on-disk belief that a specific process is the current
// server instance. Port and StartUnix are optional (zero when unknown).
type Record struct {
	PID       int   `json:"-"`
	Port      int   `json:"port,omitempty"`
	StartUnix int64 `json:"start_unix,omitempty"`
}

// Info is a structural snapshot of the store.
type Info struct {
	PID     int    `json:"pid"`
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Running bool   `json:"running"`
}

// Store manages one PID file at a fixed path.
type Store struct {
	path string
}

// DefaultPath returns the PID file location inside the OS temp directory.
func DefaultPath() string { return filepath.Join(os.TempDir(), DefaultName) }

// New returns a Store for path. An empty path selects DefaultPath.
func New(path string) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// Path returns the fixed file path of this store.
func (s *Store) Path() string { return s.path }

// Save writes pid as the whole content of the PID file.
func (s *Store) Save(pid int) error {
	return s.SaveRecord(Record{PID: pid})
}

// SaveRecord writes the pid on the first line and, when any metadata is
// present, a JSON meta line after it.
func (s *Store) SaveRecord(rec Record) error {
	if rec.PID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, rec.PID)
	}
	content := strconv.Itoa(rec.PID)
	if rec.Port > 0 || rec.StartUnix > 0 {
		meta, err := json.Marshal(rec)
		if err != nil {
			return &IOError{Path: s.path, Err: err}
		}
		content += "\n" + string(meta)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return &IOError{Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, []byte(content+"\n"), 0o600); err != nil {
		return &IOError{Path: s.path, Err: err}
	}
	slog.Debug("pid file written", "path", s.path, "pid", rec.PID, "port", rec.Port)
	return nil
}

// Read returns the recorded pid. ok is false when the file is absent,
// unreadable, or does not hold a positive integer.
func (s *Store) Read() (pid int, ok bool) {
	rec, ok := s.Record()
	return rec.PID, ok
}

// Record returns the full record, including metadata when it parses.
func (s *Store) Record() (Record, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return Record{}, false
	}
	return parse(b)
}

func parse(b []byte) (Record, bool) {
	content := strings.TrimSpace(strings.ReplaceAll(string(b), "\r\n", "\n"))
	first, rest, _ := strings.Cut(content, "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return Record{}, false
	}
	rec := Record{PID: pid}
	if meta := strings.TrimSpace(rest); meta != "" {
		var m Record
		// Metadata is advisory; a broken meta line still yields the pid.
		if json.Unmarshal([]byte(meta), &m) == nil {
			rec.Port = m.Port
			rec.StartUnix = m.StartUnix
		}
	}
	return rec, true
}

// IsAlive reports whether the recorded process exists.
func (s *Store) IsAlive() bool {
	rec, ok := s.Record()
	if !ok {
		return false
	}
	return alive(rec.PID, rec.StartUnix)
}

// IsProcessAlive probes pid without delivering a signal. When pid matches
// the recorded pid, the recorded start time is used to reject reused pids.
func (s *Store) IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	var start int64
	if rec, ok := s.Record(); ok && rec.PID == pid {
		start = rec.StartUnix
	}
	return alive(pid, start)
}

// Cleanup removes the PID file. Failures are logged, never returned.
func (s *Store) Cleanup() {
	err := os.Remove(s.path)
	if err == nil {
		slog.Debug("pid file removed", "path", s.path)
		return
	}
	if !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove pid file", "path", s.path, "error", err)
	}
}

// Info combines Read, an existence check and the liveness probe.
func (s *Store) Info() Info {
	_, statErr := os.Stat(s.path)
	pid, _ := s.Read()
	return Info{
		PID:     pid,
		Path:    s.path,
		Exists:  statErr == nil,
		Running: s.IsAlive(),
	}
}

// ValidateAndCleanup answers "is the managed process actually running".
// A file whose process is gone is removed and reported as not running.
func (s *Store) ValidateAndCleanup() bool {
	if _, err := os.Stat(s.path); err != nil {
		return false
	}
	if s.IsAlive() {
		return true
	}
	pid, _ := s.Read()
	slog.Info("removing stale pid file", "path", s.path, "pid", pid)
	s.Cleanup()
	return false
}

func alive(pid int, startUnix int64) bool {
	ok, cur := probe(pid, startUnix > 0)
	if !ok {
		return false
	}
	// A different start time means the pid was reused by an unrelated process.
	return startUnix <= 0 || cur <= 0 || cur == startUnix
}
