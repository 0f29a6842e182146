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

package arkvisor

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithName sets the name used in logs and reported by GetInfo.
func WithName(name string) Option {
	return func(s *Supervisor) {
		s.name = name
	}
}

// WithMaxRunning sets the concurrency cap.  It must be at least one.
func WithMaxRunning(n int) Option {
	return func(s *Supervisor) {
		s.maxRunning = n
	}
}

// WithLauncher replaces the default ExecLauncher.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		s.launcher = l
	}
}

// WithLogger sets the logger.  The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(s *Supervisor) {
		s.metrics = mc
	}
}

// WithMonitorInterval sets how often the monitor reaps exited processes.
// Zero disables the monitor entirely.
func WithMonitorInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.interval = d
	}
}

// WithStopOnExit makes Shutdown ask every running instance to terminate.
func WithStopOnExit(stop bool) Option {
	return func(s *Supervisor) {
		s.stopOnExit = stop
	}
}
