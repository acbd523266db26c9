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

// Package reward implements the single reward function both schedulers
// share: the balanced scheduler emits it for telemetry, the DDQN
// scheduler trains on it.
package reward

import (
	"gonum.org/v1/gonum/stat"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
)

// InfeasiblePenalty is the fixed reward for a node that is NotReady or
// cannot satisfy the request; the step is marked done.
const InfeasiblePenalty = -1.0

// loadBalanceWeight keeps utility primary over load balance.
const loadBalanceWeight = 0.5

// For computes the reward for binding pod onto node, given the Ready
// nodes of the fleet as observed immediately after the bind.
//
//	base   = 1 - mean(util_cpu, util_mem, util_gpu) at node
//	lb_r   = 1 / (1 + stddev(util_r across all Ready nodes))
//	reward = base + 0.5 * mean(lb_cpu, lb_mem, lb_gpu)
func For(node *apiv1.Node, readyFleet []*apiv1.Node) float64 {
	if node.Status != apiv1.NodeReady {
		return InfeasiblePenalty
	}

	util := node.Allocated.Utilization(node.Total)
	base := 1 - mean(util["cpu"], util["memory"], util["gpu"])

	cpuUtils, memUtils, gpuUtils := fleetUtilizations(readyFleet)
	lbCPU := loadBalanceFactor(cpuUtils)
	lbMem := loadBalanceFactor(memUtils)
	lbGPU := loadBalanceFactor(gpuUtils)

	return base + loadBalanceWeight*mean(lbCPU, lbMem, lbGPU)
}

// loadBalanceFactor is 1/(1+stddev(utils)). A fleet with zero or one Ready
// node, or a resource with zero capacity everywhere, has stddev 0, giving
// a factor of 1.
func loadBalanceFactor(utils []float64) float64 {
	if len(utils) < 2 {
		return 1
	}
	_, std := stat.MeanStdDev(utils, nil)
	return 1 / (1 + std)
}

func fleetUtilizations(fleet []*apiv1.Node) (cpu, mem, gpu []float64) {
	for _, n := range fleet {
		if n.Status != apiv1.NodeReady {
			continue
		}
		u := n.Allocated.Utilization(n.Total)
		cpu = append(cpu, u["cpu"])
		mem = append(mem, u["memory"])
		gpu = append(gpu, u["gpu"])
	}
	return
}

func mean(vals ...float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
