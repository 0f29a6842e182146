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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsCollector implements MetricsCollector using its own
// Prometheus registry.
type PrometheusMetricsCollector struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	instanceRunning *prometheus.GaugeVec
	running         prometheus.Gauge
	reaped          *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector.  The namespace
// defaults to "arkvisor".
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "arkvisor"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of supervisor commands by outcome",
		},
		[]string{"command", "result"},
	)

	pmc.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent processing supervisor commands",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"command"},
	)

	pmc.instanceRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instance_running",
			Help:      "1 if the map instance was last seen running, else 0",
		},
		[]string{"instance"},
	)

	pmc.running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_instances",
			Help:      "Number of map instances seen running by the last check",
		},
	)

	pmc.reaped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_total",
			Help:      "Total number of exited map processes removed from the table",
		},
		[]string{"instance"},
	)

	pmc.registry.MustRegister(
		pmc.commands,
		pmc.commandDuration,
		pmc.instanceRunning,
		pmc.running,
		pmc.reaped,
	)

	return pmc
}

func (pmc *PrometheusMetricsCollector) CommandCompleted(command string, result string, d time.Duration) {
	pmc.commands.WithLabelValues(command, result).Inc()
	pmc.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (pmc *PrometheusMetricsCollector) InstanceState(id InstanceID, state State) {
	v := 0.0
	if state == Running {
		v = 1
	}
	pmc.instanceRunning.WithLabelValues(string(id)).Set(v)
}

func (pmc *PrometheusMetricsCollector) RunningInstances(n int) {
	pmc.running.Set(float64(n))
}

func (pmc *PrometheusMetricsCollector) InstanceReaped(id InstanceID, code int) {
	pmc.reaped.WithLabelValues(string(id)).Inc()
}

// Registry returns the registry the metrics are registered with.
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Handler returns an http.Handler serving the metrics.
func (pmc *PrometheusMetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(pmc.registry, promhttp.HandlerOpts{})
}
