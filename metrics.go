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
)

// MetricsCollector receives supervisor events for instrumentation.
type MetricsCollector interface {
	// CommandCompleted records the outcome of a Status, Start or Stop.
	// Result is "ok" or the short name of the error kind.
	CommandCompleted(command string, result string, d time.Duration)

	// InstanceState records the liveness last observed for an instance.
	InstanceState(id InstanceID, state State)

	// RunningInstances records the running count seen by the last command
	// or monitor pass.
	RunningInstances(n int)

	// InstanceReaped records removal of an exited process.
	InstanceReaped(id InstanceID, code int)
}

type noopMetricsCollector struct{}

func (noopMetricsCollector) CommandCompleted(string, string, time.Duration) {}
func (noopMetricsCollector) InstanceState(InstanceID, State)                 {}
func (noopMetricsCollector) RunningInstances(int)                            {}
func (noopMetricsCollector) InstanceReaped(InstanceID, int)                  {}

// NewNoopMetricsCollector returns a collector that discards everything.
func NewNoopMetricsCollector() MetricsCollector {
	return noopMetricsCollector{}
}

// ResultName maps a command error onto the label used for metrics.
func ResultName(e error) string {
	switch Kind(e) {
	case nil:
		return "ok"
	case ErrCapacityExceeded:
		return "capacity_exceeded"
	case ErrAlreadyRunning:
		return "already_running"
	case ErrAlreadyStopped:
		return "already_stopped"
	case ErrSpawnFailed:
		return "spawn_failed"
	case ErrSignalFailed:
		return "signal_failed"
	case ErrUnknownInstance:
		return "unknown_instance"
	}
	return "error"
}
