/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package runtime defines the ContainerRuntime collaborator: the process
// that actually launches container processes on hosts is an external
// concern, so this package only carries the contract plus two stand-ins
// used by the pod registry and its tests.
package runtime

import (
	"context"
	"fmt"
	"sync"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
)

// ContainerRuntime starts and stops a single container. Image pull and
// command-line construction are opaque side effects of Start.
type ContainerRuntime interface {
	Start(ctx context.Context, container *apiv1.Container) error
	Stop(ctx context.Context, container *apiv1.Container) error
}

// Noop always succeeds; it is the default runtime wired into the process
// entrypoint, since the real container runtime is an external
// collaborator with no implementation obligation here.
type Noop struct{}

func (Noop) Start(context.Context, *apiv1.Container) error { return nil }
func (Noop) Stop(context.Context, *apiv1.Container) error  { return nil }

// Fake is a deterministic, table-driven runtime for tests: it fails Start
// or Stop for any container name present in the corresponding set,
// letting tests exercise a pod's partial-failure path.
type Fake struct {
	mu        sync.Mutex
	FailStart map[string]bool
	FailStop  map[string]bool
	started   map[string]int
	stopped   map[string]int
}

// NewFake constructs an empty Fake runtime.
func NewFake() *Fake {
	return &Fake{
		FailStart: map[string]bool{},
		FailStop:  map[string]bool{},
		started:   map[string]int{},
		stopped:   map[string]int{},
	}
}

func (f *Fake) Start(_ context.Context, c *apiv1.Container) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started[c.Name]++
	if f.FailStart[c.Name] {
		return fmt.Errorf("fake runtime: start refused for container %q", c.Name)
	}
	return nil
}

func (f *Fake) Stop(_ context.Context, c *apiv1.Container) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped[c.Name]++
	if f.FailStop[c.Name] {
		return fmt.Errorf("fake runtime: stop refused for container %q", c.Name)
	}
	return nil
}

// StartCount returns how many times Start was called for name.
func (f *Fake) StartCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[name]
}

// StopCount returns how many times Stop was called for name.
func (f *Fake) StopCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped[name]
}
