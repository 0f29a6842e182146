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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arkvisor/arkvisor/rest"
)

// Status is the word shown for a map's state.
func Status(m *rest.MapInfo) string {
	if m.Running {
		return "running"
	}
	return "stopped"
}

// Pid formats the process id, or a dash when there is none.
func Pid(m *rest.MapInfo) string {
	if !m.Running || m.Pid == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", m.Pid)
}

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// FormatMap renders one line of status output.
func FormatMap(m *rest.MapInfo) string {
	return fmt.Sprintf("%-20s %-10s %8s", m.Name, Status(m), Pid(m))
}

// Summary renders the totals line for a snapshot.
func Summary(maps []rest.MapInfo, max int) string {
	running := 0
	for _, m := range maps {
		if m.Running {
			running++
		}
	}
	if max > 0 {
		return fmt.Sprintf("%d Maps  %d Running (limit %d)  %d Stopped",
			len(maps), running, max, len(maps)-running)
	}
	return fmt.Sprintf("%d Maps  %d Running  %d Stopped",
		len(maps), running, len(maps)-running)
}

type sorted []rest.MapInfo

func (s sorted) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s sorted) Len() int {
	return len(s)
}

func (s sorted) Less(i, j int) bool {
	a := s[i]
	b := s[j]

	if a.Running != b.Running {
		// running maps go first
		return a.Running
	}
	return strings.ToLower(a.Name) < strings.ToLower(b.Name)
}

// SortMaps orders running maps ahead of stopped ones, then by name.
func SortMaps(items []rest.MapInfo) {
	sort.Stable(sorted(items))
}
