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

// Package balanced implements the deterministic filter-then-prioritize-
// then-bind scheduler: a weighted-utilization scorer with a
// single retry on a racing bind, modeled on a classic filter/score/bind
// pipeline shape.
package balanced

import (
	"context"
	"sort"
	"time"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/registry"
	"github.com/gmnkube/control-plane/pkg/scheduling/reward"
	"github.com/gmnkube/control-plane/pkg/telemetry"
)

// Weights scales each resource's contribution to a node's score. Lower
// score wins.
type Weights struct {
	CPU    float64
	Memory float64
	GPU    float64
}

// DefaultWeights gives cpu, memory, and gpu equal weight.
var DefaultWeights = Weights{CPU: 1, Memory: 1, GPU: 1}

// Scheduler is the two-phase balanced scheduler.
type Scheduler struct {
	weights Weights
	nodes   *registry.NodeRegistry
	log     *telemetry.Log
}

// NewScheduler constructs a balanced scheduler with the given weights,
// backed by nodes for fleet state and emitting telemetry into log.
func NewScheduler(weights Weights, nodes *registry.NodeRegistry, log *telemetry.Log) *Scheduler {
	return &Scheduler{weights: weights, nodes: nodes, log: log}
}

// candidate pairs a Ready, feasible node with its computed score.
type candidate struct {
	node  *apiv1.Node
	score float64
}

// filterAndScore returns every Ready node able to satisfy requests,
// sorted by ascending score with lexicographic node-name tiebreak.
func (s *Scheduler) filterAndScore(fleet []*apiv1.Node, requests apiv1.ResourceVector) []candidate {
	var candidates []candidate
	for _, n := range fleet {
		if n.Status != apiv1.NodeReady {
			continue
		}
		if !n.CanSchedule(requests) {
			continue
		}
		candidates = append(candidates, candidate{node: n, score: s.score(n)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].node.Name < candidates[j].node.Name
	})
	return candidates
}

// score computes Σ_r w_r · util(n, r), r ∈ {cpu, memory, gpu}.
func (s *Scheduler) score(n *apiv1.Node) float64 {
	util := n.Allocated.Utilization(n.Total)
	return s.weights.CPU*util["cpu"] + s.weights.Memory*util["memory"] + s.weights.GPU*util["gpu"]
}

// Schedule binds pod onto the best-scoring Ready node able to satisfy its
// requests. On a racing InsufficientResources it retries the whole
// filter+score once before failing NoFeasibleNode. A schedule cancelled
// before the bind is a no-op.
func (s *Scheduler) Schedule(ctx context.Context, pod *apiv1.Pod) (string, error) {
	const maxAttempts = 2
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fleet := s.nodes.Snapshot()
		candidates := s.filterAndScore(fleet, pod.Resources.Requests)
		if len(candidates) == 0 {
			return "", cperrors.NoFeasibleNode("no ready node satisfies pod %s/%s requests", pod.Namespace, pod.Name)
		}

		winner := candidates[0].node
		if err := s.nodes.Bind(ctx, pod, winner.Name); err != nil {
			if cperrors.Is(err, cperrors.KindInsufficientResource) {
				lastErr = err
				continue
			}
			return "", err
		}

		s.emitReward(ctx, pod, winner.Name)
		return winner.Name, nil
	}
	if lastErr == nil {
		lastErr = cperrors.NoFeasibleNode("no ready node satisfies pod %s/%s requests", pod.Namespace, pod.Name)
	}
	return "", cperrors.NoFeasibleNode("pod %s/%s: %v", pod.Namespace, pod.Name, lastErr)
}

// emitReward computes the shared reward function for the chosen node and
// appends a telemetry record.
func (s *Scheduler) emitReward(ctx context.Context, pod *apiv1.Pod, nodeName string) {
	fleet, err := s.nodes.All(ctx)
	if err != nil {
		fleet = s.nodes.Snapshot()
	}
	bound, err := s.nodes.Get(nodeName)
	if err != nil {
		return
	}
	readyFleet := readyNodes(fleet)
	r := reward.For(bound, readyFleet)
	s.log.Append(pod.Key(), nodeName, r, time.Now())
}

func readyNodes(fleet []*apiv1.Node) []*apiv1.Node {
	var out []*apiv1.Node
	for _, n := range fleet {
		if n.Status == apiv1.NodeReady {
			out = append(out, n)
		}
	}
	return out
}
