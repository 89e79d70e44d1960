package config

import (
	"os"
	"path/filepath"
	"testing"
)

// FuzzLoadTOML feeds arbitrary bytes as a config file; Load must either
// succeed with a valid config or return an error, never panic.
func FuzzLoadTOML(f *testing.F) {
	f.Add("[server]\nport = 8080\n")
	f.Add("[daemon]\nstop_timeout = \"-1s\"\n")
	f.Add("env = [\"A=B\"]\n")
	f.Add("[[server]]")
	f.Fuzz(func(t *testing.T, content string) {
		p := filepath.Join(t.TempDir(), "fuzz.toml")
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Skip()
		}
		cfg, err := Load(p)
		if err == nil {
			if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
				t.Fatalf("invalid port %d accepted", cfg.Server.Port)
			}
		}
	})
}
