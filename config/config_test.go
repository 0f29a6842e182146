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

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arkvisor/arkvisor"
)

const sampleConfig = `
name: test-cluster
listen: 0.0.0.0:8000
working_dir: /srv/ark/ShooterGame/Binaries/Linux
executable: ShooterGameServer
common_args: ["-server", "-log"]
max_running: 3
known_instances: [TheIsland, Ragnarok]
instances:
  - name: TheIsland
    options: TheIsland?listen?Port=7777
  - name: Ragnarok
    options: Ragnarok?listen?Port=7779
    args: ["-NoBattlEye"]
log_output: true
logging:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "arkvisor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "test-cluster", cfg.Name)
	assert.Equal(t, "0.0.0.0:8000", cfg.Listen)
	assert.Equal(t, 3, cfg.MaxRunning)
	assert.True(t, cfg.LogOutput)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// defaults fill in what the file leaves out
	assert.Equal(t, 587*time.Millisecond, cfg.MonitorInterval())
	assert.Equal(t, arkvisor.MaxLogRecords, cfg.Logging.Records)
	assert.False(t, cfg.StopOnExit)

	assert.Equal(t, []arkvisor.InstanceID{"TheIsland", "Ragnarok"}, cfg.Known())

	cs := cfg.Cluster()
	require.Len(t, cs.Instances, 2)
	assert.Equal(t, arkvisor.InstanceID("Ragnarok"), cs.Instances[1].Name)
	assert.Equal(t, []string{"-NoBattlEye"}, cs.Instances[1].Args)
	assert.Equal(t, []string{"-server", "-log"}, cs.CommonArgs)

	r, err := arkvisor.NewRegistry(cfg.Known(), cs)
	require.NoError(t, err)
	ls := r.SpecificationFor("Ragnarok")
	assert.Equal(t, "/srv/ark/ShooterGame/Binaries/Linux/ShooterGameServer", ls.Path)
	assert.Equal(t, []string{"Ragnarok?listen?Port=7779", "-NoBattlEye", "-server", "-log"}, ls.Args)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultKnownInstances(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "executable: /opt/ark/server\n"))
	require.NoError(t, err)
	assert.Equal(t, arkvisor.DefaultInstances, cfg.Known())
	assert.Equal(t, arkvisor.DefaultMaxRunning, cfg.MaxRunning)
	assert.Equal(t, "127.0.0.1:7776", cfg.Listen)

	// no instance entries, so the registry refuses it
	_, err = arkvisor.NewRegistry(cfg.Known(), cfg.Cluster())
	assert.True(t, errors.Is(err, arkvisor.ErrMissingInstance))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ARKVISOR_MAX_RUNNING", "5")
	t.Setenv("ARKVISOR_LOGGING_LEVEL", "warn")

	v := New(writeConfig(t, sampleConfig))
	require.NoError(t, v.ReadInConfig())
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRunning)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad listen", func(c *Config) { c.Listen = "nowhere" }, "listen"},
		{"no executable", func(c *Config) { c.Executable = " " }, "executable"},
		{"zero cap", func(c *Config) { c.MaxRunning = 0 }, "max_running"},
		{"negative interval", func(c *Config) { c.MonitorIntervalMs = -1 }, "monitor_interval_ms"},
		{"duplicate known", func(c *Config) { c.KnownInstances = []string{"A", "a"} }, "known_instances[1]"},
		{"empty known", func(c *Config) { c.KnownInstances = []string{""} }, "known_instances[0]"},
		{"duplicate instance", func(c *Config) {
			c.Instances = []InstanceConfig{{Name: "A"}, {Name: "A"}}
		}, "instances[1].name"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative records", func(c *Config) { c.Logging.Records = -1 }, "logging.records"},
		{"user without hash", func(c *Config) { c.Auth.User = "admin" }, "auth"},
		{"hash not bcrypt", func(c *Config) {
			c.Auth.User = "admin"
			c.Auth.PasswordHash = "secret"
		}, "auth.password_hash"},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }, "rate_limit.requests_per_second"},
		{"zero burst", func(c *Config) {
			c.RateLimit.RequestsPerSecond = 5
			c.RateLimit.Burst = 0
		}, "rate_limit.burst"},
	}

	assert.Empty(t, Default().Validate())

	good := Default()
	good.Auth.User = "admin"
	good.Auth.PasswordHash = string(hash)
	assert.Empty(t, good.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			errs := c.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestLoadReportsAllErrors(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "max_running: 0\nlogging:\n  format: xml\n"))
	require.Error(t, err)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "2 validation errors")
}

func TestDump(t *testing.T) {
	c := Default()
	c.Auth.User = "admin"
	c.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
	var buf bytes.Buffer
	require.NoError(t, c.Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, "max_running: 2")
	assert.Contains(t, out, "<redacted>")
	assert.NotContains(t, out, "abcdefghijklmnop")
	// the caller's config is not modified
	assert.Equal(t, "$2a$10$abcdefghijklmnopqrstuv", c.Auth.PasswordHash)
}
