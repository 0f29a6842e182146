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
	"sync"
)

// ReapFunc is called after a handle has been removed from the table
// because its process was seen to exit.
type ReapFunc func(id InstanceID, h Handle, code int)

// ProcessTable maps instances to the handles of their live processes.
// Presence of a handle whose Poll reports no exit is what "running" means.
// A handle is removed as soon as a poll observes its exit.
type ProcessTable struct {
	handles map[InstanceID]Handle
	onReap  ReapFunc
	mx      sync.Mutex
}

type reaped struct {
	id   InstanceID
	h    Handle
	code int
}

func (t *ProcessTable) lock() {
	t.mx.Lock()
}

func (t *ProcessTable) unlock() {
	t.mx.Unlock()
}

func (t *ProcessTable) notify(rs []reaped) {
	if t.onReap == nil {
		return
	}
	for _, r := range rs {
		t.onReap(r.id, r.h, r.code)
	}
}

// poll checks one entry, removing it if the process has exited.  Call
// with the lock held.
func (t *ProcessTable) poll(id InstanceID, h Handle, rs []reaped) (State, []reaped) {
	if exited, code := h.Poll(); exited {
		delete(t.handles, id)
		return Stopped, append(rs, reaped{id: id, h: h, code: code})
	}
	return Running, rs
}

// Liveness polls the handle for id, reaping it if its process has exited.
func (t *ProcessTable) Liveness(id InstanceID) State {
	var rs []reaped
	state := Stopped
	t.lock()
	if h, ok := t.handles[id]; ok {
		state, rs = t.poll(id, h, rs)
	}
	t.unlock()
	t.notify(rs)
	return state
}

// Get returns the handle for id without polling it.
func (t *ProcessTable) Get(id InstanceID) (Handle, bool) {
	t.lock()
	h, ok := t.handles[id]
	t.unlock()
	return h, ok
}

// Insert installs h for id, replacing any previous handle.  Any previous
// handle ought to be for a process that has already exited.
func (t *ProcessTable) Insert(id InstanceID, h Handle) {
	t.lock()
	t.handles[id] = h
	t.unlock()
}

// Remove drops the handle for id without signaling its process.
func (t *ProcessTable) Remove(id InstanceID) {
	t.lock()
	delete(t.handles, id)
	t.unlock()
}

// RunningCount polls every entry and returns how many are still running.
// Exited entries are reaped along the way.
func (t *ProcessTable) RunningCount() int {
	var rs []reaped
	var state State
	n := 0
	t.lock()
	for id, h := range t.handles {
		if state, rs = t.poll(id, h, rs); state == Running {
			n++
		}
	}
	t.unlock()
	t.notify(rs)
	return n
}

// Len returns the number of entries, without polling them.
func (t *ProcessTable) Len() int {
	t.lock()
	n := len(t.handles)
	t.unlock()
	return n
}

// NewProcessTable returns an empty table.  The reap function may be nil.
func NewProcessTable(onReap ReapFunc) *ProcessTable {
	return &ProcessTable{
		handles: make(map[InstanceID]Handle),
		onReap:  onReap,
	}
}
