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

package v1

// PodStatus is the pod lifecycle state.
type PodStatus string

const (
	PodPending PodStatus = "Pending"
	PodRunning PodStatus = "Running"
	PodStopped PodStatus = "Stopped"
	PodFailed  PodStatus = "Failed"
)

// PodKey identifies a pod by its (namespace, name) pair.
type PodKey struct {
	Namespace string
	Name      string
}

// Pod aggregates container resource requests into pod-level totals
// whenever its container list changes. NodeName is set once
// the pod is bound; there is no back-pointer from the node.
type Pod struct {
	Namespace  string               `json:"namespace"`
	Name       string               `json:"name"`
	Containers []Container          `json:"containers"`
	Resources  ResourceRequirements `json:"resources"`
	Volumes    []string             `json:"volumes,omitempty"`
	Status     PodStatus            `json:"status"`
	NodeName   string               `json:"nodeName,omitempty"`
}

// Key returns the pod's (namespace, name) identity.
func (p *Pod) Key() PodKey { return PodKey{Namespace: p.Namespace, Name: p.Name} }

// AggregateResources recomputes Resources.Requests and Resources.Limits
// as the component-wise sum of every container's vectors. It
// is idempotent: calling it twice in a row yields the same result because
// it always rebuilds from Containers rather than accumulating onto the
// previous total.
func (p *Pod) AggregateResources() {
	var requests, limits ResourceVector
	for _, c := range p.Containers {
		requests = requests.Add(c.Resources.Requests)
		limits = limits.Add(c.Resources.Limits)
	}
	p.Resources = ResourceRequirements{Requests: requests, Limits: limits}
}

// SetContainers replaces the container list and recomputes aggregates,
// keeping the "resources recomputed whenever the container list changes"
// invariant in one place instead of relying on every caller to remember.
func (p *Pod) SetContainers(containers []Container) {
	p.Containers = containers
	p.AggregateResources()
}

// Snapshot returns a deep-enough copy of p, safe to read and marshal
// without holding the registry's mutation lock.
func (p *Pod) Snapshot() *Pod {
	cp := *p
	cp.Containers = append([]Container(nil), p.Containers...)
	cp.Volumes = append([]string(nil), p.Volumes...)
	return &cp
}

// NewPod constructs a pod in Pending status with aggregated resources.
func NewPod(namespace, name string, containers []Container) *Pod {
	p := &Pod{Namespace: namespace, Name: name, Status: PodPending}
	p.SetContainers(containers)
	return p
}
