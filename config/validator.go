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
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string // config key, e.g. "max_running"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every problem found, so they can be fixed
// in one go.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogFormats returns the accepted logging.format values.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks c and returns every problem found.  Whether each known
// map has an entry is checked later, by arkvisor.NewRegistry.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errors = append(errors, ValidationError{
			Field:   "listen",
			Value:   c.Listen,
			Message: "must be a host:port address",
		})
	}

	if strings.TrimSpace(c.Executable) == "" {
		errors = append(errors, ValidationError{
			Field:   "executable",
			Value:   c.Executable,
			Message: "must not be empty",
		})
	}

	if c.MaxRunning < 1 {
		errors = append(errors, ValidationError{
			Field:   "max_running",
			Value:   c.MaxRunning,
			Message: "must be at least 1",
		})
	}

	if c.MonitorIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor_interval_ms",
			Value:   c.MonitorIntervalMs,
			Message: "must not be negative",
		})
	}

	seen := make(map[string]bool)
	for i, name := range c.KnownInstances {
		key := strings.ToLower(name)
		field := fmt.Sprintf("known_instances[%d]", i)
		if strings.TrimSpace(name) == "" {
			errors = append(errors, ValidationError{Field: field, Value: name, Message: "must not be empty"})
		} else if seen[key] {
			errors = append(errors, ValidationError{Field: field, Value: name, Message: "duplicate map"})
		}
		seen[key] = true
	}

	seen = make(map[string]bool)
	for i, ic := range c.Instances {
		key := strings.ToLower(ic.Name)
		field := fmt.Sprintf("instances[%d].name", i)
		if strings.TrimSpace(ic.Name) == "" {
			errors = append(errors, ValidationError{Field: field, Value: ic.Name, Message: "must not be empty"})
		} else if seen[key] {
			errors = append(errors, ValidationError{Field: field, Value: ic.Name, Message: "duplicate map"})
		}
		seen[key] = true
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of debug, info, warn, error",
		})
	}

	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	if c.Logging.Records < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.records",
			Value:   c.Logging.Records,
			Message: "must not be negative",
		})
	}

	if (c.Auth.User == "") != (c.Auth.PasswordHash == "") {
		errors = append(errors, ValidationError{
			Field:   "auth",
			Value:   c.Auth.User,
			Message: "user and password_hash must be set together",
		})
	} else if c.Auth.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Auth.PasswordHash)); err != nil {
			errors = append(errors, ValidationError{
				Field:   "auth.password_hash",
				Value:   "<redacted>",
				Message: "must be a bcrypt hash",
			})
		}
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.requests_per_second",
			Value:   c.RateLimit.RequestsPerSecond,
			Message: "must not be negative",
		})
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.burst",
			Value:   c.RateLimit.Burst,
			Message: "must be at least 1 when rate limiting",
		})
	}

	return errors
}
