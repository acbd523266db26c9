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

package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/avast/retry-go"
	"go.uber.org/multierr"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/runtime"
	"github.com/gmnkube/control-plane/pkg/store"
)

// PodRegistry mediates pod lifecycle, keyed by (namespace, name). It
// follows the node registry's discipline: r.mu guards every read and
// write of the live pod objects, readers get copy-on-read snapshots, and
// runtime calls never run under the lock.
type PodRegistry struct {
	mu      sync.RWMutex
	pods    map[apiv1.PodKey]*apiv1.Pod
	store   store.Interface
	runtime runtime.ContainerRuntime
}

// NewPodRegistry constructs an empty registry.
func NewPodRegistry(s store.Interface, rt runtime.ContainerRuntime) *PodRegistry {
	return &PodRegistry{pods: map[apiv1.PodKey]*apiv1.Pod{}, store: s, runtime: rt}
}

// persist writes a pod snapshot to the store. Callers must pass a copy
// taken under r.mu, never the live map entry: a concurrent mutation of
// the same pod would otherwise race the marshal.
func (r *PodRegistry) persist(ctx context.Context, snap *apiv1.Pod) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return cperrors.Internal(err)
	}
	err = retry.Do(func() error {
		return r.store.Put(ctx, store.PodKey(snap.Namespace, snap.Name), body)
	}, retry.Attempts(storeRetryAttempts), retry.Context(ctx))
	if err != nil {
		return cperrors.StoreUnavailable(err)
	}
	return r.persistStatus(ctx, snap)
}

func (r *PodRegistry) persistStatus(ctx context.Context, snap *apiv1.Pod) error {
	err := retry.Do(func() error {
		return r.store.Put(ctx, store.PodStatusKey(snap.Namespace, snap.Name), []byte(snap.Status))
	}, retry.Attempts(storeRetryAttempts), retry.Context(ctx))
	if err != nil {
		return cperrors.StoreUnavailable(err)
	}
	return nil
}

// Create constructs a new Pending pod and persists it. Fails AlreadyExists
// if (namespace, name) is present.
func (r *PodRegistry) Create(ctx context.Context, namespace, name string, containers []apiv1.Container) (*apiv1.Pod, error) {
	key := apiv1.PodKey{Namespace: namespace, Name: name}
	r.mu.Lock()
	if _, ok := r.pods[key]; ok {
		r.mu.Unlock()
		return nil, cperrors.AlreadyExists("pod %s/%s already exists", namespace, name)
	}
	p := apiv1.NewPod(namespace, name, containers)
	r.pods[key] = p
	snap := p.Snapshot()
	r.mu.Unlock()

	if err := r.persist(ctx, snap); err != nil {
		r.mu.Lock()
		delete(r.pods, key)
		r.mu.Unlock()
		return nil, err
	}
	return snap, nil
}

// Get returns a copy-on-read snapshot of a pod by (namespace, name).
func (r *PodRegistry) Get(namespace, name string) (*apiv1.Pod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pods[apiv1.PodKey{Namespace: namespace, Name: name}]
	if !ok {
		return nil, cperrors.NotFound("pod %s/%s not found", namespace, name)
	}
	return p.Snapshot(), nil
}

// ListByNamespace returns a snapshot of every pod in namespace.
func (r *PodRegistry) ListByNamespace(namespace string) []*apiv1.Pod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*apiv1.Pod
	for k, p := range r.pods {
		if k.Namespace == namespace {
			out = append(out, p.Snapshot())
		}
	}
	return out
}

// ListAll returns a snapshot of every pod, keyed by namespace then name.
func (r *PodRegistry) ListAll() map[string]map[string]*apiv1.Pod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]map[string]*apiv1.Pod{}
	for k, p := range r.pods {
		if out[k.Namespace] == nil {
			out[k.Namespace] = map[string]*apiv1.Pod{}
		}
		out[k.Namespace][k.Name] = p.Snapshot()
	}
	return out
}

// SetNodeName records the node a pod was bound to (an empty nodeName
// clears the binding) and persists the updated snapshot.
func (r *PodRegistry) SetNodeName(ctx context.Context, namespace, name, nodeName string) error {
	r.mu.Lock()
	p, ok := r.pods[apiv1.PodKey{Namespace: namespace, Name: name}]
	if !ok {
		r.mu.Unlock()
		return cperrors.NotFound("pod %s/%s not found", namespace, name)
	}
	previous := p.NodeName
	p.NodeName = nodeName
	snap := p.Snapshot()
	r.mu.Unlock()

	if err := r.persist(ctx, snap); err != nil {
		r.mu.Lock()
		p.NodeName = previous
		r.mu.Unlock()
		return err
	}
	return nil
}

// Delete stops a Running pod first, then removes it from the registry and
// deletes its store key prefix. Fails NotFound if absent.
func (r *PodRegistry) Delete(ctx context.Context, namespace, name string) error {
	key := apiv1.PodKey{Namespace: namespace, Name: name}
	r.mu.RLock()
	p, ok := r.pods[key]
	running := ok && p.Status == apiv1.PodRunning
	r.mu.RUnlock()
	if !ok {
		return cperrors.NotFound("pod %s/%s not found", namespace, name)
	}

	if running {
		if err := r.Stop(ctx, namespace, name); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.pods, key)
	r.mu.Unlock()

	if err := retry.Do(func() error {
		return r.store.DeletePrefix(ctx, store.PodKey(namespace, name))
	}, retry.Attempts(storeRetryAttempts), retry.Context(ctx)); err != nil {
		r.mu.Lock()
		r.pods[key] = p
		r.mu.Unlock()
		return cperrors.StoreUnavailable(err)
	}
	return nil
}

// Start transitions pod and container statuses to Running. Fails if the
// pod is already Running. Partial failure across containers sets the
// pod's status to Failed, leaves successfully started containers Running,
// and returns a RuntimeFailure error.
func (r *PodRegistry) Start(ctx context.Context, namespace, name string) error {
	r.mu.Lock()
	p, ok := r.pods[apiv1.PodKey{Namespace: namespace, Name: name}]
	if !ok {
		r.mu.Unlock()
		return cperrors.NotFound("pod %s/%s not found", namespace, name)
	}
	if p.Status == apiv1.PodRunning {
		r.mu.Unlock()
		return cperrors.InvalidInput("pod %s/%s is already running", namespace, name)
	}
	containers := append([]apiv1.Container(nil), p.Containers...)
	r.mu.Unlock()

	// Runtime calls run off-lock against container copies; only the
	// status write-back below re-enters the lock.
	var errs error
	statuses := make([]apiv1.ContainerStatus, len(containers))
	for i := range containers {
		if err := r.runtime.Start(ctx, &containers[i]); err != nil {
			errs = multierr.Append(errs, err)
			statuses[i] = apiv1.ContainerFailed
			continue
		}
		statuses[i] = apiv1.ContainerRunning
	}

	r.mu.Lock()
	for i := range p.Containers {
		if i < len(statuses) {
			p.Containers[i].Status = statuses[i]
		}
	}
	if errs == nil {
		p.Status = apiv1.PodRunning
	} else {
		p.Status = apiv1.PodFailed
	}
	snap := p.Snapshot()
	r.mu.Unlock()

	if err := r.persist(ctx, snap); err != nil {
		return err
	}
	if errs != nil {
		return cperrors.RuntimeFailure("pod %s/%s: %v", namespace, name, errs)
	}
	return nil
}

// Stop is the inverse of Start: best-effort across containers, pod
// becomes Stopped only if every container stops cleanly. A container
// whose stop call fails keeps its previous status.
func (r *PodRegistry) Stop(ctx context.Context, namespace, name string) error {
	r.mu.Lock()
	p, ok := r.pods[apiv1.PodKey{Namespace: namespace, Name: name}]
	if !ok {
		r.mu.Unlock()
		return cperrors.NotFound("pod %s/%s not found", namespace, name)
	}
	containers := append([]apiv1.Container(nil), p.Containers...)
	r.mu.Unlock()

	var errs error
	statuses := make([]apiv1.ContainerStatus, len(containers))
	for i := range containers {
		if err := r.runtime.Stop(ctx, &containers[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		statuses[i] = apiv1.ContainerStopped
	}

	r.mu.Lock()
	for i := range p.Containers {
		if i < len(statuses) && statuses[i] != "" {
			p.Containers[i].Status = statuses[i]
		}
	}
	if errs == nil {
		p.Status = apiv1.PodStopped
	} else {
		p.Status = apiv1.PodFailed
	}
	snap := p.Snapshot()
	r.mu.Unlock()

	if err := r.persist(ctx, snap); err != nil {
		return err
	}
	if errs != nil {
		return cperrors.RuntimeFailure("pod %s/%s: %v", namespace, name, errs)
	}
	return nil
}

// Restart stops then starts the pod; it composes entirely from Stop and
// Start and carries no independent failure mode of its own.
func (r *PodRegistry) Restart(ctx context.Context, namespace, name string) error {
	if err := r.Stop(ctx, namespace, name); err != nil {
		return err
	}
	return r.Start(ctx, namespace, name)
}
