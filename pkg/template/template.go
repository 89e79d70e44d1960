// Package template generates starter TOML configuration files for the
// claudewrap daemon.
package template

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Profile selects a preset configuration.
type Profile string

const (
	ProfileDefault     Profile = "default"
	ProfileBasic       Profile = "basic"
	ProfileDevelopment Profile = "development"
	ProfileDev         Profile = "dev"
	ProfileMock        Profile = "mock"
	ProfileTest        Profile = "test"
	ProfileProduction  Profile = "production"
	ProfileProd        Profile = "prod"
)

// ConfigTemplate mirrors the sections of a claudewrap config file.
// Durations are kept as strings so the file stays human readable.
type ConfigTemplate struct {
	Server    ServerSection    `toml:"server"`
	Daemon    DaemonSection    `toml:"daemon"`
	Shutdown  ShutdownSection  `toml:"shutdown"`
	Lifecycle LifecycleSection `toml:"lifecycle"`
	Log       LogSection       `toml:"log"`
	History   *HistorySection  `toml:"history,omitempty"`
	Session   SessionSection   `toml:"session"`
}

type ServerSection struct {
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key,omitempty"`
	Verbose bool   `toml:"verbose"`
	Debug   bool   `toml:"debug"`
	Mock    bool   `toml:"mock"`
}

type DaemonSection struct {
	PIDFile      string `toml:"pid_file,omitempty"`
	LogFile      string `toml:"log_file,omitempty"`
	StopTimeout  string `toml:"stop_timeout"`
	PollInterval string `toml:"poll_interval"`
}

type ShutdownSection struct {
	Timeout     string `toml:"timeout"`
	StepTimeout string `toml:"step_timeout"`
}

type LifecycleSection struct {
	Budget        string `toml:"budget"`
	RestartDelay  string `toml:"restart_delay"`
	HealthTimeout string `toml:"health_timeout"`
	HealthPath    string `toml:"health_path"`
}

type LogSection struct {
	File       string `toml:"file,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type HistorySection struct {
	DSN string `toml:"dsn"`
}

type SessionSection struct {
	TTL             string `toml:"ttl"`
	CleanupInterval string `toml:"cleanup_interval"`
}

// Generator provides config generation functionality
type Generator struct{}

// NewGenerator creates a new config generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds the template for profile. A positive port overrides the
// profile's port.
func (g *Generator) Generate(profile Profile, port int) (*ConfigTemplate, error) {
	var t *ConfigTemplate
	switch profile {
	case ProfileDefault, ProfileBasic, "":
		t = g.base()
	case ProfileDevelopment, ProfileDev:
		t = g.development()
	case ProfileMock, ProfileTest:
		t = g.mock()
	case ProfileProduction, ProfileProd:
		t = g.production()
	default:
		return nil, fmt.Errorf("unknown profile: %s (supported: default, development, mock, production)", profile)
	}
	if port > 0 {
		if port > 65535 {
			return nil, fmt.Errorf("invalid port %d", port)
		}
		t.Server.Port = port
	}
	return t, nil
}

// Render returns the TOML document for profile.
func (g *Generator) Render(profile Profile, port int) ([]byte, error) {
	t, err := g.Generate(profile, port)
	if err != nil {
		return nil, err
	}
	body, err := toml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	name := profile
	if name == "" {
		name = ProfileDefault
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# claudewrap configuration (profile: %s)\n", name)
	buf.WriteString("# Every key can be overridden with CLAUDEWRAP_<SECTION>_<KEY>.\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// SupportedProfiles returns the canonical profile names.
func (g *Generator) SupportedProfiles() []string {
	return []string{
		string(ProfileDefault),
		string(ProfileDevelopment),
		string(ProfileMock),
		string(ProfileProduction),
	}
}

func (g *Generator) base() *ConfigTemplate {
	return &ConfigTemplate{
		Server: ServerSection{Port: 8080},
		Daemon: DaemonSection{
			StopTimeout:  dur(10 * time.Second),
			PollInterval: dur(100 * time.Millisecond),
		},
		Shutdown: ShutdownSection{Timeout: dur(10 * time.Second), StepTimeout: dur(5 * time.Second)},
		Lifecycle: LifecycleSection{
			Budget:        dur(200 * time.Millisecond),
			RestartDelay:  dur(500 * time.Millisecond),
			HealthTimeout: dur(2 * time.Second),
			HealthPath:    "/health",
		},
		Log:     LogSection{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7},
		Session: SessionSection{TTL: dur(time.Hour), CleanupInterval: dur(5 * time.Minute)},
	}
}

func (g *Generator) development() *ConfigTemplate {
	t := g.base()
	t.Server.Verbose = true
	t.Server.Debug = true
	t.Lifecycle.RestartDelay = dur(200 * time.Millisecond)
	t.Session.TTL = dur(15 * time.Minute)
	return t
}

func (g *Generator) mock() *ConfigTemplate {
	t := g.base()
	t.Server.Mock = true
	t.Server.Verbose = true
	t.History = &HistorySection{DSN: "sqlite://:memory:"}
	return t
}

func (g *Generator) production() *ConfigTemplate {
	t := g.base()
	t.Server.APIKey = "change-me"
	t.Daemon.PIDFile = "/var/run/claudewrap/claudewrap.pid"
	t.Daemon.LogFile = "/var/log/claudewrap/daemon.log"
	t.Shutdown = ShutdownSection{Timeout: dur(30 * time.Second), StepTimeout: dur(10 * time.Second)}
	t.Log = LogSection{File: "/var/log/claudewrap/claudewrap.log", MaxSizeMB: 50, MaxBackups: 10, MaxAgeDays: 30, Compress: true}
	t.History = &HistorySection{DSN: "sqlite:///var/lib/claudewrap/history.db"}
	return t
}

func dur(d time.Duration) string { return d.String() }
