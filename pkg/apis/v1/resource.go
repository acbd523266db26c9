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

// Package v1 holds the core data model of the control plane: resource
// vectors, containers, pods and nodes.
package v1

// ResourceVector is the five-scalar resource accounting unit shared by
// nodes and pods. All components are canonical integers: millicores,
// bytes, a raw count, and two bytes/s rates.
type ResourceVector struct {
	CPU    int64 `json:"cpu"`
	Memory int64 `json:"memory"`
	GPU    int64 `json:"gpu"`
	IO     int64 `json:"io"`
	Net    int64 `json:"net"`
}

// epsilonSnap is the fallback for implementations that retain floating
// point accounting. This model is integer throughout, so it is 0 and
// the snap in Sub never changes a value.
const epsilonSnap = 0

// Add returns the component-wise sum of two vectors.
func (r ResourceVector) Add(o ResourceVector) ResourceVector {
	return ResourceVector{
		CPU:    r.CPU + o.CPU,
		Memory: r.Memory + o.Memory,
		GPU:    r.GPU + o.GPU,
		IO:     r.IO + o.IO,
		Net:    r.Net + o.Net,
	}
}

// Sub returns the component-wise difference, snapping any component that
// would dip within epsilonSnap of zero back to exactly zero.
func (r ResourceVector) Sub(o ResourceVector) ResourceVector {
	out := ResourceVector{
		CPU:    r.CPU - o.CPU,
		Memory: r.Memory - o.Memory,
		GPU:    r.GPU - o.GPU,
		IO:     r.IO - o.IO,
		Net:    r.Net - o.Net,
	}
	snap := func(v int64) int64 {
		if v > -epsilonSnap && v < epsilonSnap {
			return 0
		}
		return v
	}
	out.CPU, out.Memory, out.GPU, out.IO, out.Net = snap(out.CPU), snap(out.Memory), snap(out.GPU), snap(out.IO), snap(out.Net)
	return out
}

// Dominates reports whether r is component-wise greater than or equal to
// req — the feasibility test used throughout scheduling.
func (r ResourceVector) Dominates(req ResourceVector) bool {
	return r.CPU >= req.CPU && r.Memory >= req.Memory && r.GPU >= req.GPU && r.IO >= req.IO && r.Net >= req.Net
}

// Free returns total minus allocated, component-wise.
func (r ResourceVector) Free(allocated ResourceVector) ResourceVector {
	return r.Sub(allocated)
}

// Utilization returns allocated/total per named resource (cpu, memory,
// gpu), 0 when total is 0 for that resource.
func (r ResourceVector) Utilization(total ResourceVector) map[string]float64 {
	ratio := func(alloc, tot int64) float64 {
		if tot == 0 {
			return 0
		}
		return float64(alloc) / float64(tot)
	}
	return map[string]float64{
		"cpu":    ratio(r.CPU, total.CPU),
		"memory": ratio(r.Memory, total.Memory),
		"gpu":    ratio(r.GPU, total.GPU),
	}
}
