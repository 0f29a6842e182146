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
)

// InstanceID names one map instance.  The set of valid identifiers is fixed
// when the Registry is built and never changes afterwards.
type InstanceID string

func (id InstanceID) String() string {
	return string(id)
}

// DefaultInstances is the reference cluster: ten maps, of which at most
// two may run at once.
var DefaultInstances = []InstanceID{
	"Aberration",
	"TheIsland",
	"ScorchedEarth",
	"TheCenter",
	"Ragnarok",
	"Extinction",
	"Valguero",
	"GenesisPart1",
	"CrystalIsles",
	"GenesisPart2",
}

// DefaultMaxRunning is the concurrency cap of the reference cluster.
const DefaultMaxRunning = 2

// State is the derived liveness of an instance.  It is never stored; it is
// recomputed from the process table each time it is asked for.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	switch s {
	case Stopped, Running:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("bad state %d", int(s))
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Stopped":
		*s = Stopped
	case "Running":
		*s = Running
	default:
		return fmt.Errorf("bad state %q", string(b))
	}
	return nil
}

// InstanceStatus is one entry of a Status snapshot.
type InstanceStatus struct {
	ID    InstanceID
	State State
	Pid   int // zero unless Running
}
