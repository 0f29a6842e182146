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
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Supervisor owns the process table for a Registry, and is the single
// point through which instances are started, stopped and inspected.
//
// Every command holds the command lock from its first observation of the
// table until its last mutation, so commands never interleave.  In
// particular the running count used for the cap check is always computed
// inside the same Start that acts on it.
type Supervisor struct {
	name       string
	registry   *Registry
	table      *ProcessTable
	launcher   Launcher
	maxRunning int
	logger     logrus.FieldLogger
	metrics    MetricsCollector
	interval   time.Duration
	stopOnExit bool

	cmdmx sync.Mutex // serializes commands

	// The following are protected by mx.
	serial     int64
	createTime time.Time
	updateTime time.Time
	monitoring bool
	done       chan struct{}
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

// SupervisorInfo is top-level information about a Supervisor.
type SupervisorInfo struct {
	Name       string
	Serial     int64
	MaxRunning int
	Instances  int
	CreateTime time.Time
	UpdateTime time.Time
}

func (s *Supervisor) lock() {
	s.cmdmx.Lock()
}

func (s *Supervisor) unlock() {
	s.cmdmx.Unlock()
}

// bumpSerial increments the serial and wakes any watchers.
func (s *Supervisor) bumpSerial() int64 {
	s.mx.Lock()
	s.updateTime = time.Now()
	s.serial++
	rv := s.serial
	for cv := range s.cvs {
		cv.Broadcast()
	}
	s.mx.Unlock()
	return rv
}

// WatchSerial blocks until the serial number differs from old, or until
// expire has elapsed, and returns the current serial.  An expire of zero
// makes this a simple poll.
func (s *Supervisor) WatchSerial(old int64, expire time.Duration) int64 {
	expired := false
	cv := sync.NewCond(&s.mx)
	var timer *time.Timer
	var rv int64

	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			s.mx.Lock()
			expired = true
			cv.Broadcast()
			s.mx.Unlock()
		})
	} else {
		expired = true
	}

	s.mx.Lock()
	s.cvs[cv] = true
	for {
		rv = s.serial
		if rv != old || expired {
			break
		}
		cv.Wait()
	}
	delete(s.cvs, cv)
	s.mx.Unlock()
	if timer != nil {
		timer.Stop()
	}
	return rv
}

// Serial returns the current serial number.  It changes whenever an
// instance is started, stopped, or reaped.
func (s *Supervisor) Serial() int64 {
	s.mx.Lock()
	rv := s.serial
	s.mx.Unlock()
	return rv
}

// Name returns the name the supervisor was created with.
func (s *Supervisor) Name() string {
	return s.name
}

// MaxRunning returns the concurrency cap.
func (s *Supervisor) MaxRunning() int {
	return s.maxRunning
}

// Registry returns the registry of known instances.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Lookup resolves an instance name, ignoring case.
func (s *Supervisor) Lookup(name string) (InstanceID, error) {
	return s.registry.Lookup(name)
}

// GetInfo returns a consistent snapshot of top-level information.
func (s *Supervisor) GetInfo() *SupervisorInfo {
	s.mx.Lock()
	i := &SupervisorInfo{
		Name:       s.name,
		Serial:     s.serial,
		MaxRunning: s.maxRunning,
		Instances:  s.registry.Len(),
		CreateTime: s.createTime,
		UpdateTime: s.updateTime,
	}
	s.mx.Unlock()
	return i
}

func (s *Supervisor) reaped(id InstanceID, h Handle, code int) {
	s.logger.WithFields(logrus.Fields{
		"instance": id,
		"pid":      h.Pid(),
		"code":     code,
	}).Info("Map process exited")
	s.metrics.InstanceReaped(id, code)
	s.metrics.InstanceState(id, Stopped)
	s.bumpSerial()
}

func (s *Supervisor) finish(command string, e error, start time.Time) {
	s.metrics.CommandCompleted(command, ResultName(e), time.Since(start))
}

func (s *Supervisor) status() []InstanceStatus {
	rv := make([]InstanceStatus, 0, s.registry.Len())
	n := 0
	for _, id := range s.registry.ids {
		is := InstanceStatus{ID: id, State: s.table.Liveness(id)}
		if is.State == Running {
			if h, ok := s.table.Get(id); ok {
				is.Pid = h.Pid()
			}
			n++
		}
		s.metrics.InstanceState(id, is.State)
		rv = append(rv, is)
	}
	s.metrics.RunningInstances(n)
	return rv
}

// Status returns the liveness of every known instance, in registry order.
// Exited processes are reaped as a side effect.
func (s *Supervisor) Status() []InstanceStatus {
	start := time.Now()
	s.lock()
	rv := s.status()
	s.unlock()
	s.finish("status", nil, start)
	return rv
}

// StatusSerial is Status, together with the serial number that describes
// the returned snapshot.  Both are taken while no other command runs, so a
// change made after the snapshot always carries a later serial.
func (s *Supervisor) StatusSerial() ([]InstanceStatus, int64) {
	start := time.Now()
	s.lock()
	rv := s.status()
	serial := s.Serial()
	s.unlock()
	s.finish("status", nil, start)
	return rv, serial
}

// InstanceStatus returns the liveness of a single instance.
func (s *Supervisor) InstanceStatus(id InstanceID) (InstanceStatus, error) {
	if s.registry.SpecificationFor(id) == nil {
		return InstanceStatus{}, fmt.Errorf("%w '%s'", ErrUnknownInstance, id)
	}
	s.lock()
	is := InstanceStatus{ID: id, State: s.table.Liveness(id)}
	if is.State == Running {
		if h, ok := s.table.Get(id); ok {
			is.Pid = h.Pid()
		}
	}
	s.unlock()
	return is, nil
}

// RunningCount returns the number of running instances, polling each one.
func (s *Supervisor) RunningCount() int {
	s.lock()
	n := s.table.RunningCount()
	s.unlock()
	return n
}

func (s *Supervisor) start(id InstanceID) error {
	spec := s.registry.SpecificationFor(id)
	if spec == nil {
		return fmt.Errorf("%w '%s'", ErrUnknownInstance, id)
	}
	log := s.logger.WithField("instance", id)

	n := s.table.RunningCount()
	s.metrics.RunningInstances(n)
	if n >= s.maxRunning {
		log.WithField("running", n).Error("Failed to start map: too many maps running")
		return ErrCapacityExceeded
	}

	if s.table.Liveness(id) == Running {
		log.Error("Failed to start map: the map is already running")
		return ErrAlreadyRunning
	}

	h, e := s.launcher.Launch(id, spec)
	if e != nil {
		log.WithError(e).Error("Failed to start map")
		return fmt.Errorf("%w: %w", ErrSpawnFailed, e)
	}
	s.table.Insert(id, h)
	s.metrics.InstanceState(id, Running)
	s.metrics.RunningInstances(n + 1)
	log.WithField("pid", h.Pid()).Info("Starting map")
	s.bumpSerial()
	return nil
}

// Start launches the instance, provided fewer than the cap are running and
// the instance itself is not running.  The cap is checked first.
func (s *Supervisor) Start(id InstanceID) error {
	start := time.Now()
	s.lock()
	e := s.start(id)
	s.unlock()
	s.finish("start", e, start)
	return e
}

func (s *Supervisor) stop(id InstanceID) error {
	if s.registry.SpecificationFor(id) == nil {
		return fmt.Errorf("%w '%s'", ErrUnknownInstance, id)
	}
	log := s.logger.WithField("instance", id)

	if s.table.Liveness(id) == Stopped {
		log.Error("Failed to stop map: the map is already stopped")
		return ErrAlreadyStopped
	}
	h, ok := s.table.Get(id)
	if !ok {
		return ErrAlreadyStopped
	}

	log = log.WithField("pid", h.Pid())
	log.Info("Sending termination request to map")
	if e := h.Terminate(); e != nil {
		log.WithError(e).Error("Failed to stop map")
		return fmt.Errorf("%w: %w", ErrSignalFailed, e)
	}
	s.bumpSerial()
	return nil
}

// Stop asks a running instance to terminate.  It does not wait for the
// process to exit; the instance keeps reporting Running until a later
// poll sees the exit.
func (s *Supervisor) Stop(id InstanceID) error {
	start := time.Now()
	s.lock()
	e := s.stop(id)
	s.unlock()
	s.finish("stop", e, start)
	return e
}

func (s *Supervisor) monitor(done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		s.mx.Lock()
		monitoring := s.monitoring
		s.mx.Unlock()
		if monitoring {
			s.lock()
			s.metrics.RunningInstances(s.table.RunningCount())
			s.unlock()
		}
	}
}

// StartMonitoring enables periodic reaping of exited processes.
func (s *Supervisor) StartMonitoring() {
	s.logger.Infof("*** Arkvisor starting monitoring: %s ***", s.name)
	s.mx.Lock()
	s.monitoring = true
	s.mx.Unlock()
}

// StopMonitoring disables periodic reaping.  Reaping still happens
// whenever a command polls the table.
func (s *Supervisor) StopMonitoring() {
	s.mx.Lock()
	s.monitoring = false
	s.mx.Unlock()
	s.logger.Infof("*** Arkvisor stopping monitoring: %s ***", s.name)
}

// Shutdown stops the monitor.  If the supervisor was created with
// WithStopOnExit, every running instance is also asked to terminate;
// otherwise running instances are left alone and become unmanaged.
func (s *Supervisor) Shutdown() {
	s.mx.Lock()
	s.monitoring = false
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mx.Unlock()

	if s.stopOnExit {
		s.lock()
		for _, id := range s.registry.ids {
			if s.table.Liveness(id) != Running {
				continue
			}
			if e := s.stop(id); e != nil {
				s.logger.WithField("instance", id).WithError(e).Warn("Map not stopped at shutdown")
			}
		}
		s.unlock()
	}
	s.logger.Infof("*** Arkvisor shut down: %s ***", s.name)
}

// NewSupervisor returns a Supervisor for the instances in r.  No
// instance is running initially.
func NewSupervisor(r *Registry, opts ...Option) (*Supervisor, error) {
	if r == nil || r.Len() == 0 {
		return nil, ErrNoInstances
	}
	s := &Supervisor{
		name:       "arkvisor",
		registry:   r,
		maxRunning: DefaultMaxRunning,
		metrics:    NewNoopMetricsCollector(),
		logger:     logrus.StandardLogger(),
		interval:   time.Millisecond * 587,
		// The origin serial is the creation time in nsec, so clients
		// caching against an older supervisor see a change.
		serial: time.Now().UnixNano(),
		cvs:    make(map[*sync.Cond]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRunning < 1 {
		return nil, ErrBadCapacity
	}
	if s.launcher == nil {
		s.launcher = &ExecLauncher{Logger: s.logger}
	}
	s.table = NewProcessTable(s.reaped)
	s.createTime = time.Now()
	s.updateTime = s.createTime
	if s.interval > 0 {
		s.done = make(chan struct{})
		go s.monitor(s.done)
	}
	return s, nil
}
