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

// ContainerStatus mirrors the subset of the pod lifecycle a container can
// independently be in.
type ContainerStatus string

const (
	ContainerPending ContainerStatus = "Pending"
	ContainerRunning ContainerStatus = "Running"
	ContainerStopped ContainerStatus = "Stopped"
	ContainerFailed  ContainerStatus = "Failed"
)

// ResourceRequirements is the pair of sub-vectors a container declares:
// Requests drive admission, Limits are informational.
type ResourceRequirements struct {
	Requests ResourceVector `json:"requests"`
	Limits   ResourceVector `json:"limits"`
}

// Container is owned by exactly one pod; it is never shared.
type Container struct {
	Name      string               `json:"name"`
	Image     string               `json:"image"`
	Command   []string             `json:"command,omitempty"`
	Ports     []int                `json:"ports,omitempty"`
	Resources ResourceRequirements `json:"resources"`
	Status    ContainerStatus      `json:"status"`
}
