// Copyright 2026 The Arkvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads arkvisor daemon settings with viper.
//
// Settings come from a YAML file, with ARKVISOR_ prefixed environment
// variables overriding scalar keys (ARKVISOR_LISTEN, ARKVISOR_MAX_RUNNING,
// ARKVISOR_LOGGING_LEVEL and so on).
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arkvisor/arkvisor"
)

// Config is the complete daemon configuration.
type Config struct {
	// Name identifies this supervisor in logs and in /info.
	Name string `mapstructure:"name" yaml:"name"`
	// Listen is the address of the control interface.
	Listen string `mapstructure:"listen" yaml:"listen"`
	// WorkingDir is both the directory holding the server executable and
	// the working directory of every map process.
	WorkingDir string `mapstructure:"working_dir" yaml:"working_dir"`
	// Executable is the server binary, relative to WorkingDir unless absolute.
	Executable string `mapstructure:"executable" yaml:"executable"`
	// CommonArgs are appended to every map's arguments.
	CommonArgs []string `mapstructure:"common_args" yaml:"common_args"`
	// MaxRunning is the maximum number of maps running at once (default: 2)
	MaxRunning int `mapstructure:"max_running" yaml:"max_running"`
	// KnownInstances overrides the fixed set of maps.  Empty means the
	// ten reference maps.
	KnownInstances []string `mapstructure:"known_instances" yaml:"known_instances"`
	// Instances holds one entry per known map.
	Instances []InstanceConfig `mapstructure:"instances" yaml:"instances"`
	// LogOutput copies map stdout/stderr into the supervisor log.
	LogOutput bool `mapstructure:"log_output" yaml:"log_output"`
	// StopOnExit terminates running maps when the daemon shuts down.
	StopOnExit bool `mapstructure:"stop_on_exit" yaml:"stop_on_exit"`
	// MonitorIntervalMs is how often exited maps are reaped in the
	// background (0 = only when asked)
	MonitorIntervalMs int `mapstructure:"monitor_interval_ms" yaml:"monitor_interval_ms"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// InstanceConfig is the launch configuration of one map.
type InstanceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	// Options is the map option string, e.g. "TheIsland?listen?Port=7777"
	Options string   `mapstructure:"options" yaml:"options"`
	Args    []string `mapstructure:"args" yaml:"args"`
}

// LoggingConfig controls the daemon log.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json"
	Format string `mapstructure:"format" yaml:"format"`
	// Records is how many log records are kept for GET /log
	Records int `mapstructure:"records" yaml:"records"`
}

// AuthConfig enables HTTP basic authentication on the control interface
// when User is set.  PasswordHash is a bcrypt hash.
type AuthConfig struct {
	User         string `mapstructure:"user" yaml:"user"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
}

// RateLimitConfig limits control requests; zero disables the limit.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// Default returns a Config with default values.  It has no instance
// entries, so it is not usable on its own.
func Default() *Config {
	known := make([]string, 0, len(arkvisor.DefaultInstances))
	for _, id := range arkvisor.DefaultInstances {
		known = append(known, string(id))
	}
	return &Config{
		Name:              "arkvisor",
		Listen:            "127.0.0.1:7776",
		WorkingDir:        ".",
		Executable:        "ShooterGameServer",
		CommonArgs:        []string{},
		MaxRunning:        arkvisor.DefaultMaxRunning,
		KnownInstances:    known,
		Instances:         []InstanceConfig{},
		LogOutput:         false,
		StopOnExit:        false,
		MonitorIntervalMs: 587,
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "text",
			Records: arkvisor.MaxLogRecords,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             10,
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("name", defaults.Name)
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("working_dir", defaults.WorkingDir)
	v.SetDefault("executable", defaults.Executable)
	v.SetDefault("common_args", defaults.CommonArgs)
	v.SetDefault("max_running", defaults.MaxRunning)
	v.SetDefault("known_instances", defaults.KnownInstances)
	v.SetDefault("log_output", defaults.LogOutput)
	v.SetDefault("stop_on_exit", defaults.StopOnExit)
	v.SetDefault("monitor_interval_ms", defaults.MonitorIntervalMs)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.records", defaults.Logging.Records)

	v.SetDefault("auth.user", defaults.Auth.User)
	v.SetDefault("auth.password_hash", defaults.Auth.PasswordHash)

	v.SetDefault("rate_limit.requests_per_second", defaults.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", defaults.RateLimit.Burst)
}

// New returns a viper instance with defaults and environment overrides
// in place.  If path is not empty it names the config file to read.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("ARKVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Load(v)
}

// Known returns the fixed set of instance identifiers.
func (c *Config) Known() []arkvisor.InstanceID {
	if len(c.KnownInstances) == 0 {
		return append([]arkvisor.InstanceID{}, arkvisor.DefaultInstances...)
	}
	rv := make([]arkvisor.InstanceID, 0, len(c.KnownInstances))
	for _, name := range c.KnownInstances {
		rv = append(rv, arkvisor.InstanceID(name))
	}
	return rv
}

// Cluster converts the launch related settings for arkvisor.NewRegistry.
func (c *Config) Cluster() arkvisor.ClusterSettings {
	cs := arkvisor.ClusterSettings{
		WorkingDir: c.WorkingDir,
		Executable: c.Executable,
		CommonArgs: append([]string{}, c.CommonArgs...),
		Instances:  make([]arkvisor.InstanceSettings, 0, len(c.Instances)),
	}
	for _, ic := range c.Instances {
		cs.Instances = append(cs.Instances, arkvisor.InstanceSettings{
			Name:    arkvisor.InstanceID(ic.Name),
			Options: ic.Options,
			Args:    append([]string{}, ic.Args...),
		})
	}
	return cs
}

// MonitorInterval returns the monitor interval as a time.Duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalMs) * time.Millisecond
}

// Dump writes the configuration as YAML, with the password hash redacted.
func (c *Config) Dump(w io.Writer) error {
	out := *c
	if out.Auth.PasswordHash != "" {
		out.Auth.PasswordHash = "<redacted>"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return err
	}
	return enc.Close()
}
