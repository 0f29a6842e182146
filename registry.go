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
	"os/exec"
	"path/filepath"
	"strings"
)

// InstanceSettings is the per-map part of the cluster configuration.
type InstanceSettings struct {
	Name    InstanceID
	Options string   // map option string, passed as the first argument
	Args    []string // extra arguments for this map only
}

// ClusterSettings carries everything needed to build a Registry.  It is
// normally produced by the config package.
type ClusterSettings struct {
	WorkingDir string
	Executable string
	CommonArgs []string
	Instances  []InstanceSettings
}

// LaunchSpec is how a single map is started.  It is immutable once the
// Registry has been built.
type LaunchSpec struct {
	Path string
	Dir  string
	Args []string
}

// Command returns a new, unstarted command for the specification.  A
// fresh command is needed for every launch, since an exec.Cmd can only
// be started once.
func (ls *LaunchSpec) Command() *exec.Cmd {
	cmd := exec.Command(ls.Path, copyArray(ls.Args)...)
	cmd.Dir = ls.Dir
	return cmd
}

func (ls *LaunchSpec) String() string {
	return strings.Join(append([]string{ls.Path}, ls.Args...), " ")
}

func copyArray(src []string) []string {
	rv := make([]string, 0, len(src))
	rv = append(rv, src...)
	return rv
}

func newLaunchSpec(cs *ClusterSettings, is *InstanceSettings) *LaunchSpec {
	path := cs.Executable
	if !filepath.IsAbs(path) && cs.WorkingDir != "" {
		path = filepath.Join(cs.WorkingDir, path)
	}
	args := make([]string, 0, 1+len(is.Args)+len(cs.CommonArgs))
	if is.Options != "" {
		args = append(args, is.Options)
	}
	args = append(args, is.Args...)
	args = append(args, cs.CommonArgs...)
	return &LaunchSpec{
		Path: path,
		Dir:  cs.WorkingDir,
		Args: args,
	}
}

// Registry maps every known instance to its launch specification.  Its key
// set is exactly the known set, and it is read-only after construction,
// so it needs no locking.
type Registry struct {
	ids   []InstanceID
	specs map[InstanceID]*LaunchSpec
	names map[string]InstanceID
}

// NewRegistry builds the registry for the known instances.  Every known
// instance must have exactly one entry in the settings, and no entry may
// name an instance outside the known set.  Any violation is returned as an
// error; callers are expected to treat it as fatal.
func NewRegistry(known []InstanceID, cs ClusterSettings) (*Registry, error) {
	if len(known) == 0 {
		return nil, ErrNoInstances
	}
	r := &Registry{
		ids:   make([]InstanceID, 0, len(known)),
		specs: make(map[InstanceID]*LaunchSpec, len(known)),
		names: make(map[string]InstanceID, len(known)),
	}
	for _, id := range known {
		key := strings.ToLower(string(id))
		if _, dup := r.names[key]; dup {
			return nil, fmt.Errorf("%w '%s'", ErrDuplicateInstance, id)
		}
		r.names[key] = id
		r.ids = append(r.ids, id)
	}

	for i := range cs.Instances {
		is := &cs.Instances[i]
		id, ok := r.names[strings.ToLower(string(is.Name))]
		if !ok {
			return nil, fmt.Errorf("%w '%s'", ErrUnknownInstance, is.Name)
		}
		if _, dup := r.specs[id]; dup {
			return nil, fmt.Errorf("%w '%s'", ErrDuplicateInstance, id)
		}
		r.specs[id] = newLaunchSpec(&cs, is)
	}

	for _, id := range r.ids {
		if _, ok := r.specs[id]; !ok {
			return nil, fmt.Errorf("%w '%s'", ErrMissingInstance, id)
		}
	}
	return r, nil
}

// SpecificationFor returns the launch specification for id.  It is total
// over the known set; nil is only returned for ids that did not come from
// this registry.
func (r *Registry) SpecificationFor(id InstanceID) *LaunchSpec {
	return r.specs[id]
}

// Instances returns the known identifiers, in configuration order.
func (r *Registry) Instances() []InstanceID {
	rv := make([]InstanceID, 0, len(r.ids))
	rv = append(rv, r.ids...)
	return rv
}

// Lookup resolves a user supplied name, ignoring case.
func (r *Registry) Lookup(name string) (InstanceID, error) {
	if id, ok := r.names[strings.ToLower(name)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w '%s'", ErrUnknownInstance, name)
}

func (r *Registry) Len() int {
	return len(r.ids)
}
