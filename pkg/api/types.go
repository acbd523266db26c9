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

package api

import (
	"strconv"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/quantity"
)

// resourceManifest is the tagged-record quantity string form used over
// the wire; canonical integer vectors are used internally.
type resourceManifest struct {
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
	GPU    string `json:"gpu,omitempty"`
	IO     string `json:"io,omitempty"`
	Net    string `json:"net,omitempty"`
}

func (r resourceManifest) toVector() (apiv1.ResourceVector, error) {
	cpu, err := quantity.ParseCPU(r.CPU)
	if err != nil {
		return apiv1.ResourceVector{}, cperrors.InvalidInput("%v", err)
	}
	mem, err := quantity.ParseMemory(r.Memory)
	if err != nil {
		return apiv1.ResourceVector{}, cperrors.InvalidInput("%v", err)
	}
	gpu, err := quantity.ParseGPU(r.GPU)
	if err != nil {
		return apiv1.ResourceVector{}, cperrors.InvalidInput("%v", err)
	}
	io, err := parsePlainInt(r.IO)
	if err != nil {
		return apiv1.ResourceVector{}, cperrors.InvalidInput("invalid io quantity %q", r.IO)
	}
	net, err := parsePlainInt(r.Net)
	if err != nil {
		return apiv1.ResourceVector{}, cperrors.InvalidInput("invalid net quantity %q", r.Net)
	}
	return apiv1.ResourceVector{CPU: cpu, Memory: mem, GPU: gpu, IO: io, Net: net}, nil
}

// parsePlainInt parses io/net as a bare non-negative integer byte-rate;
// only cpu/memory/gpu carry a suffix grammar.
func parsePlainInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, cperrors.InvalidInput("invalid integer quantity %q", s)
	}
	return n, nil
}

// nodeManifest is the POST /nodes request body.
type nodeManifest struct {
	Name        string            `json:"name"`
	IPAddress   string            `json:"ip_address"`
	Totals      resourceManifest  `json:"totals"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func (m nodeManifest) toNode() (*apiv1.Node, error) {
	if m.Name == "" {
		return nil, cperrors.InvalidInput("node manifest requires a non-empty name")
	}
	total, err := m.Totals.toVector()
	if err != nil {
		return nil, err
	}
	n := apiv1.NewNode(m.Name, m.IPAddress, total)
	n.Labels = m.Labels
	n.Annotations = m.Annotations
	return n, nil
}

// containerManifest is one entry of spec.containers[] in a pod manifest.
type containerManifest struct {
	Name      string   `json:"name"`
	Image     string   `json:"image"`
	Command   []string `json:"command,omitempty"`
	Ports     []int    `json:"ports,omitempty"`
	Resources struct {
		Requests resourceManifest `json:"requests"`
		Limits   resourceManifest `json:"limits"`
	} `json:"resources"`
}

func (m containerManifest) toContainer() (apiv1.Container, error) {
	if m.Name == "" {
		return apiv1.Container{}, cperrors.InvalidInput("container manifest requires a non-empty name")
	}
	if m.Image == "" {
		return apiv1.Container{}, cperrors.InvalidInput("container %q requires a non-empty image", m.Name)
	}
	requests, err := m.Resources.Requests.toVector()
	if err != nil {
		return apiv1.Container{}, err
	}
	limits, err := m.Resources.Limits.toVector()
	if err != nil {
		return apiv1.Container{}, err
	}
	return apiv1.Container{
		Name:      m.Name,
		Image:     m.Image,
		Command:   m.Command,
		Ports:     m.Ports,
		Resources: apiv1.ResourceRequirements{Requests: requests, Limits: limits},
		Status:    apiv1.ContainerPending,
	}, nil
}

// podManifest is the POST /pods request body: a Kubernetes-subset manifest.
type podManifest struct {
	Metadata struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	} `json:"metadata"`
	Spec struct {
		Containers []containerManifest `json:"containers"`
	} `json:"spec"`
}

func (m podManifest) toContainers() ([]apiv1.Container, error) {
	if m.Metadata.Name == "" || m.Metadata.Namespace == "" {
		return nil, cperrors.InvalidInput("pod manifest requires metadata.name and metadata.namespace")
	}
	if len(m.Spec.Containers) == 0 {
		return nil, cperrors.InvalidInput("pod manifest requires at least one container")
	}
	containers := make([]apiv1.Container, 0, len(m.Spec.Containers))
	for _, cm := range m.Spec.Containers {
		c, err := cm.toContainer()
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, nil
}

// scheduleManifest is the POST /nodes/{name}/schedule and
// /kube_schedule /DDQN_schedule request body: pod metadata naming an
// already-created pod.
type scheduleManifest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// renderManifest is the POST /save_{kube,DDQN}_schedule request body.
type renderManifest struct {
	Path string `json:"path"`
}
