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

// NodeStatus is the node's admission eligibility state.
type NodeStatus string

const (
	NodeReady       NodeStatus = "Ready"
	NodeNotReady    NodeStatus = "NotReady"
	NodeMaintenance NodeStatus = "Maintenance"
)

// Node is a host with finite capacity. Allocated tracks the running sum
// of admitted pods' requests; Pods holds the keys of admitted pods, never
// back-pointers to the pods themselves.
type Node struct {
	Name        string            `json:"name"`
	IPAddress   string            `json:"ipAddress"`
	Total       ResourceVector    `json:"total"`
	Allocated   ResourceVector    `json:"allocated"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Status      NodeStatus        `json:"status"`
	Pods        []PodKey          `json:"pods,omitempty"`
}

// NewNode constructs a Ready node with the given capacity.
func NewNode(name, ip string, total ResourceVector) *Node {
	return &Node{
		Name:      name,
		IPAddress: ip,
		Total:     total,
		Status:    NodeReady,
	}
}

// CanSchedule reports whether the node has enough free capacity for
// requests and is Ready.
func (n *Node) CanSchedule(requests ResourceVector) bool {
	if n.Status != NodeReady {
		return false
	}
	return n.Total.Free(n.Allocated).Dominates(requests)
}

// HasPod reports whether key is already in the node's pod list.
func (n *Node) HasPod(key PodKey) bool {
	for _, k := range n.Pods {
		if k == key {
			return true
		}
	}
	return false
}

// AddPod appends key and increments Allocated by requests. Callers must
// have already verified CanSchedule; AddPod does not re-check feasibility
// so the registry can hold its mutation lock for the shortest possible
// window.
func (n *Node) AddPod(key PodKey, requests ResourceVector) {
	n.Pods = append(n.Pods, key)
	n.Allocated = n.Allocated.Add(requests)
}

// RemovePod decrements Allocated by requests and drops key from the pod
// list. Removing a pod that was never admitted is a no-op, logged by the
// caller as a warning rather than treated as an error.
func (n *Node) RemovePod(key PodKey, requests ResourceVector) (removed bool) {
	for i, k := range n.Pods {
		if k == key {
			n.Pods = append(n.Pods[:i], n.Pods[i+1:]...)
			n.Allocated = n.Allocated.Sub(requests)
			return true
		}
	}
	return false
}

// SetStatus is unconditional: changing away from Ready does not evict
// already-bound pods, it only blocks new bindings.
func (n *Node) SetStatus(status NodeStatus) {
	n.Status = status
}

// Snapshot returns a deep-enough copy of n suitable for lock-free scoring
// reads: callers can score against it without holding the registry's
// mutation lock.
func (n *Node) Snapshot() *Node {
	cp := *n
	cp.Pods = append([]PodKey(nil), n.Pods...)
	if n.Labels != nil {
		cp.Labels = make(map[string]string, len(n.Labels))
		for k, v := range n.Labels {
			cp.Labels[k] = v
		}
	}
	if n.Annotations != nil {
		cp.Annotations = make(map[string]string, len(n.Annotations))
		for k, v := range n.Annotations {
			cp.Annotations[k] = v
		}
	}
	return &cp
}
