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
)

var (
	ErrCapacityExceeded  = errors.New("Too many maps running")
	ErrAlreadyRunning    = errors.New("Map is already running")
	ErrAlreadyStopped    = errors.New("Map is already stopped")
	ErrSpawnFailed       = errors.New("Failed to start map process")
	ErrSignalFailed      = errors.New("Failed to signal map process")
	ErrUnknownInstance   = errors.New("Unknown map")
	ErrMissingInstance   = errors.New("Missing settings for map")
	ErrDuplicateInstance = errors.New("Duplicate settings for map")
	ErrBadCapacity       = errors.New("Concurrency cap must be positive")
	ErrNoInstances       = errors.New("No maps configured")
)

var errorKinds = []error{
	ErrCapacityExceeded,
	ErrAlreadyRunning,
	ErrAlreadyStopped,
	ErrSpawnFailed,
	ErrSignalFailed,
	ErrUnknownInstance,
	ErrMissingInstance,
	ErrDuplicateInstance,
	ErrBadCapacity,
	ErrNoInstances,
}

// Kind returns the sentinel error that e wraps, or e itself if it wraps
// none of them.  Kind(nil) is nil.
func Kind(e error) error {
	if e == nil {
		return nil
	}
	for _, k := range errorKinds {
		if errors.Is(e, k) {
			return k
		}
	}
	return e
}
