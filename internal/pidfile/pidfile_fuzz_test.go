package pidfile

import (
	"strconv"
	"testing"
)

func FuzzParse(f *testing.F) {
	f.Add("123\n{\"port\":8080,\"start_unix\":1}\n")
	f.Add("0\n")
	f.Add("not-a-pid\n{}\n")
	f.Add(" 77 ")
	f.Add("\n123\n")
	f.Add("  \n 123 \n\n{\"port\":1}")
	f.Fuzz(func(t *testing.T, content string) {
		rec, ok := parse([]byte(content)) // must never panic
		if ok && rec.PID <= 0 {
			t.Fatalf("parse accepted non-positive pid %d from %q", rec.PID, content)
		}
	})
}

func FuzzSaveRead(f *testing.F) {
	f.Add(1)
	f.Add(65535)
	f.Add(-3)
	f.Fuzz(func(t *testing.T, pid int) {
		s := New(t.TempDir() + "/fuzz.pid")
		err := s.Save(pid)
		if pid <= 0 {
			if err == nil {
				t.Fatalf("save(%d) accepted", pid)
			}
			return
		}
		if err != nil {
			t.Fatalf("save(%d): %v", pid, err)
		}
		got, ok := s.Read()
		if !ok || got != pid {
			t.Fatalf("read = %d,%v want %s", got, ok, strconv.Itoa(pid))
		}
	})
}
