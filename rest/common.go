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

package rest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arkvisor/arkvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollTimeHeader asks the server to hold a conditional GET for up to
	// the given number of seconds, waiting for the Etag to change.
	PollTimeHeader = "X-Arkvisor-Poll-Time"

	// maxPollTime caps how long a single request may be held.
	maxPollTime = 300
)

// MapInfo is the wire form of one map's state.
type MapInfo struct {
	Name    string         `json:"name"`
	State   arkvisor.State `json:"state"`
	Running bool           `json:"running"`
	Pid     int            `json:"pid,omitempty"`
}

// StatusInfo is a status snapshot for every known map, in configuration
// order.
type StatusInfo struct {
	Serial int64     `json:"serial,string"`
	Maps   []MapInfo `json:"maps"`
	etag   string
}

// Running returns the number of maps in the snapshot that are running.
func (si *StatusInfo) Running() int {
	n := 0
	for _, m := range si.Maps {
		if m.Running {
			n++
		}
	}
	return n
}

// Find returns the named map from the snapshot, ignoring case.
func (si *StatusInfo) Find(name string) *MapInfo {
	for i := range si.Maps {
		if strings.EqualFold(si.Maps[i].Name, name) {
			return &si.Maps[i]
		}
	}
	return nil
}

// ActionResult is returned by a successful start or stop.  Maps is the
// snapshot taken after the command ran.
type ActionResult struct {
	Message string    `json:"message"`
	Maps    []MapInfo `json:"maps"`
}

// SupervisorInfo is the wire form of arkvisor.SupervisorInfo.
type SupervisorInfo struct {
	Name       string    `json:"name"`
	Serial     int64     `json:"serial,string"`
	MaxRunning int       `json:"max_running"`
	Maps       int       `json:"maps"`
	CreateTime time.Time `json:"created"`
	UpdateTime time.Time `json:"updated"`
}

type LogRecord = arkvisor.LogRecord

// LogInfo is a set of log records, with the Etag they were fetched at.
type LogInfo struct {
	name    string
	etag    string
	Records []LogRecord
}

// Error is returned for any request that fails.  For start and stop, Maps
// carries the snapshot taken after the command was refused.
type Error struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Maps    []MapInfo `json:"maps,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func mapInfos(sts []arkvisor.InstanceStatus) []MapInfo {
	rv := make([]MapInfo, 0, len(sts))
	for _, st := range sts {
		rv = append(rv, mapInfo(st))
	}
	return rv
}

func mapInfo(st arkvisor.InstanceStatus) MapInfo {
	return MapInfo{
		Name:    string(st.ID),
		State:   st.State,
		Running: st.State == arkvisor.Running,
		Pid:     st.Pid,
	}
}

func formatEtag(v int64) string {
	return fmt.Sprintf("\"%d\"", v)
}

func parseEtag(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "W/")
	s = strings.Trim(s, "\"")
	if s == "" {
		return 0, false
	}
	v, e := strconv.ParseInt(s, 10, 64)
	if e != nil {
		return 0, false
	}
	return v, true
}
