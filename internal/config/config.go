package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/loykin/claudewrap/internal/pidfile"
)

// EnvPrefix prefixes every environment override, e.g. CLAUDEWRAP_SERVER_PORT.
const EnvPrefix = "CLAUDEWRAP"

// Config represents the top-level TOML structure.
type Config struct {
	Env       []string        `toml:"env" mapstructure:"env"`
	EnvFiles  []string        `toml:"env_files" mapstructure:"env_files"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Daemon    DaemonConfig    `toml:"daemon" mapstructure:"daemon"`
	Shutdown  ShutdownConfig  `toml:"shutdown" mapstructure:"shutdown"`
	Lifecycle LifecycleConfig `toml:"lifecycle" mapstructure:"lifecycle"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Session   SessionConfig   `toml:"session" mapstructure:"session"`
}

type ServerConfig struct {
	Port    int    `toml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	APIKey  string `toml:"api_key" mapstructure:"api_key"`
	Verbose bool   `toml:"verbose" mapstructure:"verbose"`
	Debug   bool   `toml:"debug" mapstructure:"debug"`
	Mock    bool   `toml:"mock" mapstructure:"mock"`
}

type DaemonConfig struct {
	PIDFile      string        `toml:"pid_file" mapstructure:"pid_file" validate:"required"`
	LogFile      string        `toml:"log_file" mapstructure:"log_file"`
	Executable   string        `toml:"executable" mapstructure:"executable"`
	StopTimeout  time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout" validate:"gt=0"`
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval" validate:"gt=0"`
}

type ShutdownConfig struct {
	Timeout     time.Duration `toml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	StepTimeout time.Duration `toml:"step_timeout" mapstructure:"step_timeout" validate:"gt=0"`
}

type LifecycleConfig struct {
	Budget        time.Duration `toml:"budget" mapstructure:"budget" validate:"gt=0"`
	RestartDelay  time.Duration `toml:"restart_delay" mapstructure:"restart_delay" validate:"min=0"`
	HealthTimeout time.Duration `toml:"health_timeout" mapstructure:"health_timeout" validate:"gt=0"`
	HealthPath    string        `toml:"health_path" mapstructure:"health_path" validate:"required,startswith=/"`
}

type LogConfig struct {
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type SessionConfig struct {
	TTL             time.Duration `toml:"ttl" mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `toml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.verbose", false)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.mock", false)

	v.SetDefault("daemon.pid_file", pidfile.DefaultPath())
	v.SetDefault("daemon.log_file", "")
	v.SetDefault("daemon.executable", "")
	v.SetDefault("daemon.stop_timeout", 10*time.Second)
	v.SetDefault("daemon.poll_interval", 100*time.Millisecond)

	v.SetDefault("shutdown.timeout", 10*time.Second)
	v.SetDefault("shutdown.step_timeout", 5*time.Second)

	v.SetDefault("lifecycle.budget", 200*time.Millisecond)
	v.SetDefault("lifecycle.restart_delay", 500*time.Millisecond)
	v.SetDefault("lifecycle.health_timeout", 2*time.Second)
	v.SetDefault("lifecycle.health_path", "/health")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("history.dsn", "")

	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.cleanup_interval", 5*time.Minute)
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}
	return cfg
}

// Load reads defaults, then the optional TOML file at path, then CLAUDEWRAP_*
// environment variables, and validates the result. A missing file is an
// error only when path is non-empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = pidfile.DefaultPath()
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints. The returned error lists every
// offending field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(msgs, "; "))
}

// Environ merges env_files contents and the top-level env list into KEY=VALUE
// pairs. Later entries win; the env list overrides all files.
func (c *Config) Environ() ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			set(kv[0], kv[1])
		}
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			set(kv[:i], kv[i+1:])
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// ApplyEnv exports Environ into the current process so spawned daemons
// inherit it.
func (c *Config) ApplyEnv() error {
	env, err := c.Environ()
	if err != nil {
		return err
	}
	for _, kv := range env {
		i := strings.IndexByte(kv, '=')
		if err := os.Setenv(kv[:i], kv[i+1:]); err != nil {
			return fmt.Errorf("set %s: %w", kv[:i], err)
		}
	}
	return nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) ([][2]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, [2]string{strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])})
		}
	}
	return out, nil
}
