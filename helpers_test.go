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
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	s := string(p)
	s = strings.Trim(s, "\n")
	tl.t.Log(s)
	return len(p), nil
}

// newTestLogger returns a logger that writes through t.Log.
func newTestLogger(t *testing.T) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&testLog{t: t})
	l.SetLevel(logrus.DebugLevel)
	return l
}

// fakeHandle stands in for a child process.  It stays running until exit
// is called, or, if exitOnTerm is set, until it is terminated.
type fakeHandle struct {
	pid        int
	exited     bool
	code       int
	terminated int
	exitOnTerm bool
	termErr    error
	sync.Mutex
}

func (h *fakeHandle) Pid() int {
	return h.pid
}

func (h *fakeHandle) Poll() (bool, int) {
	h.Lock()
	defer h.Unlock()
	return h.exited, h.code
}

func (h *fakeHandle) Terminate() error {
	h.Lock()
	defer h.Unlock()
	if h.termErr != nil {
		return h.termErr
	}
	h.terminated++
	if h.exitOnTerm {
		h.exited = true
		h.code = -1
	}
	return nil
}

func (h *fakeHandle) exit(code int) {
	h.Lock()
	h.exited = true
	h.code = code
	h.Unlock()
}

func (h *fakeHandle) Terminated() int {
	h.Lock()
	defer h.Unlock()
	return h.terminated
}

// fakeLauncher hands out fakeHandles and remembers the latest one for
// each instance.
type fakeLauncher struct {
	pid        int
	launches   int
	fail       map[InstanceID]error
	termErr    error
	exitOnTerm bool
	handles    map[InstanceID]*fakeHandle
	specs      map[InstanceID]*LaunchSpec
	sync.Mutex
}

var errInjected = errors.New("injected launch failure")

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		pid:     1000,
		fail:    make(map[InstanceID]error),
		handles: make(map[InstanceID]*fakeHandle),
		specs:   make(map[InstanceID]*LaunchSpec),
	}
}

func (l *fakeLauncher) Launch(id InstanceID, spec *LaunchSpec) (Handle, error) {
	l.Lock()
	defer l.Unlock()
	if e := l.fail[id]; e != nil {
		return nil, e
	}
	l.pid++
	l.launches++
	h := &fakeHandle{pid: l.pid, termErr: l.termErr, exitOnTerm: l.exitOnTerm}
	l.handles[id] = h
	l.specs[id] = spec
	return h, nil
}

func (l *fakeLauncher) handle(id InstanceID) *fakeHandle {
	l.Lock()
	defer l.Unlock()
	return l.handles[id]
}

func (l *fakeLauncher) Launches() int {
	l.Lock()
	defer l.Unlock()
	return l.launches
}

// testCluster returns settings with one entry per id.
func testCluster(ids ...InstanceID) ClusterSettings {
	cs := ClusterSettings{
		WorkingDir: "/srv/ark",
		Executable: "ShooterGameServer",
		CommonArgs: []string{"-server", "-log"},
	}
	for _, id := range ids {
		cs.Instances = append(cs.Instances, InstanceSettings{
			Name:    id,
			Options: string(id) + "?listen",
		})
	}
	return cs
}

func testRegistry(t *testing.T, ids ...InstanceID) *Registry {
	r, e := NewRegistry(ids, testCluster(ids...))
	if e != nil {
		t.Fatalf("registry: %v", e)
	}
	return r
}

// testSupervisor returns a supervisor over the given ids using a fake
// launcher, with the background monitor disabled.
func testSupervisor(t *testing.T, max int, ids ...InstanceID) (*Supervisor, *fakeLauncher) {
	l := newFakeLauncher()
	s, e := NewSupervisor(testRegistry(t, ids...),
		WithName(t.Name()),
		WithMaxRunning(max),
		WithLauncher(l),
		WithLogger(newTestLogger(t)),
		WithMonitorInterval(0))
	if e != nil {
		t.Fatalf("supervisor: %v", e)
	}
	return s, l
}
