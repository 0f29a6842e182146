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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultName(t *testing.T) {
	assert.Equal(t, "ok", ResultName(nil))
	assert.Equal(t, "capacity_exceeded", ResultName(ErrCapacityExceeded))
	assert.Equal(t, "already_running", ResultName(ErrAlreadyRunning))
	assert.Equal(t, "already_stopped", ResultName(ErrAlreadyStopped))
	assert.Equal(t, "spawn_failed", ResultName(fmt.Errorf("%w: %w", ErrSpawnFailed, errInjected)))
	assert.Equal(t, "signal_failed", ResultName(fmt.Errorf("%w: boom", ErrSignalFailed)))
	assert.Equal(t, "unknown_instance", ResultName(fmt.Errorf("%w 'x'", ErrUnknownInstance)))
	assert.Equal(t, "error", ResultName(errors.New("other")))
}

func TestKind(t *testing.T) {
	assert.Nil(t, Kind(nil))
	assert.Equal(t, ErrMissingInstance, Kind(fmt.Errorf("%w 'A'", ErrMissingInstance)))
	other := errors.New("other")
	assert.Equal(t, other, Kind(other))
}

func TestPrometheusMetricsCollector(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")
	l := newFakeLauncher()
	s, err := NewSupervisor(testRegistry(t, "A", "B", "C"),
		WithLauncher(l),
		WithLogger(newTestLogger(t)),
		WithMaxRunning(2),
		WithMonitorInterval(0),
		WithMetricsCollector(pmc))
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Start("A"))
	require.NoError(t, s.Start("B"))
	assert.Equal(t, ErrCapacityExceeded, s.Start("C"))
	assert.Equal(t, ErrAlreadyStopped, s.Stop("C"))

	assert.Equal(t, 2.0, testutil.ToFloat64(pmc.commands.WithLabelValues("start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.commands.WithLabelValues("start", "capacity_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.commands.WithLabelValues("stop", "already_stopped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pmc.running))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.instanceRunning.WithLabelValues("A")))

	l.handle("A").exit(0)
	s.Status()

	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.running))
	assert.Equal(t, 0.0, testutil.ToFloat64(pmc.instanceRunning.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.reaped.WithLabelValues("A")))

	expected := `
		# HELP test_reaped_total Total number of exited map processes removed from the table
		# TYPE test_reaped_total counter
		test_reaped_total{instance="A"} 1
	`
	err = testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expected), "test_reaped_total")
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(pmc.Registry(), "test_command_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count) // start, stop and status
}

func TestMonitorRecordsRunningInstances(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("monitor")
	l := newFakeLauncher()
	s, err := NewSupervisor(testRegistry(t, "A"),
		WithLauncher(l),
		WithLogger(newTestLogger(t)),
		WithMonitorInterval(5*time.Millisecond),
		WithMetricsCollector(pmc))
	require.NoError(t, err)
	defer s.Shutdown()
	s.StartMonitoring()

	require.NoError(t, s.Start("A"))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.running))

	l.handle("A").exit(0)
	// No command is issued; only the monitor can observe the exit.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(pmc.running) == 0
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.reaped.WithLabelValues("A")))
}
