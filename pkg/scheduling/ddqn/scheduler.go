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

// Package ddqn implements the Double-DQN scheduler: a
// gonum/mat-backed dense network picks a node index for each pod, trained
// online from a fixed-capacity replay buffer.
package ddqn

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/log"
	"github.com/gmnkube/control-plane/pkg/registry"
	"github.com/gmnkube/control-plane/pkg/scheduling/reward"
	"github.com/gmnkube/control-plane/pkg/telemetry"
)

// discount and targetSyncEvery are fixed network hyperparameters.
const (
	discount        = 0.95
	targetSyncEvery = 10
)

// columnsPerNode is the 9 scalar features the state encoding packs per
// node.
const columnsPerNode = 9

// normalizer holds the fixed per-resource scale computed once per network
// generation; it is never updated online between fleet resizes.
type normalizer struct {
	cpu, memory, gpu float64
}

func newNormalizer(fleet []*apiv1.Node) normalizer {
	n := normalizer{cpu: 1, memory: 1, gpu: 1}
	for _, node := range fleet {
		if v := float64(node.Total.CPU); v > n.cpu {
			n.cpu = v
		}
		if v := float64(node.Total.Memory); v > n.memory {
			n.memory = v
		}
		if v := float64(node.Total.GPU); v > n.gpu {
			n.gpu = v
		}
	}
	return n
}

// Scheduler is the Double-DQN scheduler. One instance serializes every
// scheduling call behind mu: a replay update must never race a concurrent
// Schedule.
type Scheduler struct {
	mu    sync.Mutex
	nodes *registry.NodeRegistry
	log   *telemetry.Log
	rng   *rand.Rand
	pol   *policy

	k       int
	online  *DenseNet
	target  *DenseNet
	buffer  *replayBuffer
	norm    normalizer
	updates int
}

// NewScheduler constructs a DDQN scheduler with a deterministic RNG seed
// so exploration and weight init are reproducible across runs of the
// same process.
func NewScheduler(nodes *registry.NodeRegistry, telemetryLog *telemetry.Log, seed int64) *Scheduler {
	rng := rand.New(rand.NewSource(seed))
	return &Scheduler{
		nodes: nodes,
		log:   telemetryLog,
		rng:   rng,
		pol:   newPolicy(rng),
	}
}

// rebuild constructs fresh online/target networks and a fresh replay
// buffer sized for len(fleet) actions, discarding any stale replay
// entries from a previous K.
func (s *Scheduler) rebuild(fleet []*apiv1.Node) {
	k := len(fleet)
	if k == 0 {
		k = 1
	}
	s.k = k
	s.norm = newNormalizer(fleet)
	s.online = NewDenseNet(k, s.rng)
	s.target = NewDenseNet(k, s.rng)
	s.target.CloneWeightsFrom(s.online)
	s.buffer = newReplayBuffer()
	s.updates = 0
}

// encodeState builds the 9K row-vector for requests against fleet, padded
// with zero vectors out to s.k when the live fleet is smaller.
func (s *Scheduler) encodeState(requests apiv1.ResourceVector, fleet []*apiv1.Node) []float64 {
	out := make([]float64, columnsPerNode*s.k)
	for i := 0; i < s.k; i++ {
		base := i * columnsPerNode
		if i >= len(fleet) {
			continue
		}
		n := fleet[i]
		free := n.Total.Free(n.Allocated)
		out[base+0] = float64(n.Allocated.CPU) / s.norm.cpu
		out[base+1] = float64(n.Allocated.Memory) / s.norm.memory
		out[base+2] = float64(n.Allocated.GPU) / s.norm.gpu
		out[base+3] = float64(free.CPU) / s.norm.cpu
		out[base+4] = float64(free.Memory) / s.norm.memory
		out[base+5] = float64(free.GPU) / s.norm.gpu
		out[base+6] = float64(requests.CPU) / s.norm.cpu
		out[base+7] = float64(requests.Memory) / s.norm.memory
		out[base+8] = float64(requests.GPU) / s.norm.gpu
	}
	return out
}

func rowMat(row []float64) *mat.Dense {
	return mat.NewDense(1, len(row), row)
}

// Schedule builds the state, picks a node via the ε-greedy policy,
// attempts the bind, stores the resulting transition, and runs a replay
// update once the buffer holds at least one batch. A schedule cancelled
// before the bind is a no-op: nothing is bound and no transition is
// stored.
func (s *Scheduler) Schedule(ctx context.Context, pod *apiv1.Pod) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fleet := s.nodes.Snapshot()
	if s.online == nil || len(fleet) != s.k {
		s.rebuild(fleet)
	}

	requests := pod.Resources.Requests
	state := s.encodeState(requests, fleet)
	qValues := s.online.Forward(rowMat(state)).RawRowView(0)
	action := s.pol.selectAction(qValues, fleet, requests)

	if action >= len(fleet) {
		s.storeTransition(state, action, reward.InfeasiblePenalty, state, true)
		return "", cperrors.NoFeasibleNode("DDQN scheduler: no live node at action index %d", action)
	}

	target := fleet[action]
	if err := s.nodes.Bind(ctx, pod, target.Name); err != nil {
		if cperrors.Is(err, cperrors.KindInsufficientResource) {
			s.storeTransition(state, action, reward.InfeasiblePenalty, state, true)
			return "", err
		}
		return "", err
	}

	afterFleet := s.nodes.Snapshot()
	bound, getErr := s.nodes.Get(target.Name)
	if getErr != nil {
		bound = target
	}
	r := reward.For(bound, readyNodes(afterFleet))
	nextState := s.encodeState(requests, afterFleet)
	s.storeTransition(state, action, r, nextState, false)

	log.FromContext(ctx).Debugw("ddqn scheduled pod", "node", target.Name, "reward", r, "epsilon", s.pol.Epsilon())
	s.log.Append(pod.Key(), target.Name, r, time.Now())
	return target.Name, nil
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

func (s *Scheduler) storeTransition(state []float64, action int, r float64, nextState []float64, done bool) {
	s.buffer.push(Transition{State: state, Action: action, Reward: r, NextState: nextState, Done: done})
	if s.buffer.len() >= batchSize {
		s.replay()
	}
}

// replay runs one Double-DQN gradient step over a sampled batch: a*
// selected by the online network, bootstrapped through
// the target network, hard-synced every 10 updates.
func (s *Scheduler) replay() {
	batch := s.buffer.sample(batchSize, s.rng)
	n := len(batch)
	inputSize := columnsPerNode * s.k

	stateRows := make([]float64, 0, n*inputSize)
	nextRows := make([]float64, 0, n*inputSize)
	for _, t := range batch {
		stateRows = append(stateRows, t.State...)
		nextRows = append(nextRows, t.NextState...)
	}
	stateBatch := mat.NewDense(n, inputSize, stateRows)
	nextBatch := mat.NewDense(n, inputSize, nextRows)

	// The state-batch forward pass must be the online network's most
	// recent one: Backward consumes the layer caches it leaves behind.
	qNextOnline := s.online.Forward(nextBatch)
	qNextTarget := s.target.Forward(nextBatch)
	qOnline := s.online.Forward(stateBatch)

	target := mat.NewDense(n, s.k, nil)
	target.Copy(qOnline)
	for i, t := range batch {
		y := t.Reward
		if !t.Done {
			aStar := argmax(qNextOnline.RawRowView(i))
			y += discount * qNextTarget.At(i, aStar)
		}
		target.Set(i, t.Action, y)
	}

	s.online.Backward(qOnline, target)
	s.pol.decay()
	s.updates++
	if s.updates%targetSyncEvery == 0 {
		s.target.CloneWeightsFrom(s.online)
	}
}

// Epsilon exposes the current exploration rate, used by telemetry/tests.
func (s *Scheduler) Epsilon() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pol.Epsilon()
}
