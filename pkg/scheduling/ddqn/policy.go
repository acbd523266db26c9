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

package ddqn

import (
	"math"
	"math/rand"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
)

// epsilon-greedy schedule: starts fully exploratory, decays
// multiplicatively after every replay batch, floors at 1%.
const (
	epsilonInit  = 1.0
	epsilonMin   = 0.01
	epsilonDecay = 0.995
)

// policy is the ε-greedy action selector. Exploration never falls back to
// uniform random: it delegates to the feasibility-aware heuristic, since
// uniform random wastes episodes on infeasible placements on small
// fleets.
type policy struct {
	epsilon float64
	rng     *rand.Rand
}

func newPolicy(rng *rand.Rand) *policy {
	return &policy{epsilon: epsilonInit, rng: rng}
}

// Epsilon returns the current exploration rate.
func (p *policy) Epsilon() float64 { return p.epsilon }

// decay applies ε ← max(ε·0.995, 0.01), called once per
// replay batch.
func (p *policy) decay() {
	p.epsilon = math.Max(p.epsilon*epsilonDecay, epsilonMin)
}

// selectAction returns a node index in [0, len(qValues)). Indices beyond
// len(fleet) name padding slots with no live node.
func (p *policy) selectAction(qValues []float64, fleet []*apiv1.Node, requests apiv1.ResourceVector) int {
	if p.rng.Float64() < p.epsilon {
		return heuristicAction(fleet, requests)
	}
	return argmax(qValues)
}

// heuristicAction picks argmin(utilization - slack) across the live
// fleet, +Inf (so never chosen) for any node that cannot satisfy
// requests.
func heuristicAction(fleet []*apiv1.Node, requests apiv1.ResourceVector) int {
	best, bestScore := 0, math.Inf(1)
	for i, n := range fleet {
		s := heuristicScore(n, requests)
		if s < bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}

func heuristicScore(n *apiv1.Node, requests apiv1.ResourceVector) float64 {
	if !n.CanSchedule(requests) {
		return math.Inf(1)
	}
	util := n.Allocated.Utilization(n.Total)
	meanUtil := (util["cpu"] + util["memory"] + util["gpu"]) / 3

	slackVec := n.Total.Free(n.Allocated).Sub(requests).Utilization(n.Total)
	meanSlack := (slackVec["cpu"] + slackVec["memory"] + slackVec["gpu"]) / 3

	return meanUtil - meanSlack
}

func argmax(values []float64) int {
	best, bestVal := 0, math.Inf(-1)
	for i, v := range values {
		if v > bestVal {
			bestVal = v
			best = i
		}
	}
	return best
}
