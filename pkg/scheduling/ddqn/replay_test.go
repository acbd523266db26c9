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
	"context"
	"fmt"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	"github.com/gmnkube/control-plane/pkg/registry"
	"github.com/gmnkube/control-plane/pkg/store"
	"github.com/gmnkube/control-plane/pkg/telemetry"
)

func TestReplayBufferNeverExceedsCapacity(t *testing.T) {
	b := newReplayBuffer()
	for i := 0; i < replayCapacity*2; i++ {
		b.push(Transition{Action: i})
		if b.len() > replayCapacity {
			t.Fatalf("buffer length %d exceeds capacity %d after %d pushes", b.len(), replayCapacity, i+1)
		}
	}
	if b.len() != replayCapacity {
		t.Fatalf("buffer length = %d, want %d at saturation", b.len(), replayCapacity)
	}
}

func TestReplayBufferEvictsOldestFirst(t *testing.T) {
	b := newReplayBuffer()
	for i := 0; i < replayCapacity+1; i++ {
		b.push(Transition{Action: i})
	}
	for _, item := range b.items {
		if item.Action == 0 {
			t.Fatal("expected the first-pushed transition to be evicted at capacity+1")
		}
	}
}

func TestReplayBufferSampleWithoutReplacement(t *testing.T) {
	b := newReplayBuffer()
	for i := 0; i < 20; i++ {
		b.push(Transition{Action: i})
	}
	got := b.sample(batchSize, rand.New(rand.NewSource(7)))
	if len(got) != batchSize {
		t.Fatalf("sample returned %d transitions, want %d", len(got), batchSize)
	}
	seen := map[int]bool{}
	for _, tr := range got {
		if seen[tr.Action] {
			t.Fatalf("transition %d sampled twice", tr.Action)
		}
		seen[tr.Action] = true
	}
}

func TestNotReadyNodeYieldsPenaltyAndTerminalTransition(t *testing.T) {
	ctx := context.Background()
	nodes := registry.NewNodeRegistry(store.NewMemoryStore())
	if err := nodes.Add(ctx, apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})); err != nil {
		t.Fatal(err)
	}
	if err := nodes.SetStatus(ctx, "n1", apiv1.NodeNotReady); err != nil {
		t.Fatal(err)
	}
	sched := NewScheduler(nodes, telemetry.NewLog(), 3)

	pod := apiv1.NewPod("default", "web", []apiv1.Container{{
		Name:      "app",
		Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 100}},
	}})
	if _, err := sched.Schedule(ctx, pod); err == nil {
		t.Fatal("expected scheduling onto a NotReady-only fleet to fail")
	}

	if sched.buffer.len() != 1 {
		t.Fatalf("buffer length = %d, want 1 stored transition", sched.buffer.len())
	}
	tr := sched.buffer.items[0]
	if tr.Reward != -1 {
		t.Fatalf("stored reward = %v, want -1", tr.Reward)
	}
	if !tr.Done {
		t.Fatal("expected the infeasible transition to be marked done")
	}
}

func TestTargetNetworkSyncsEveryTenthUpdate(t *testing.T) {
	ctx := context.Background()
	nodes := registry.NewNodeRegistry(store.NewMemoryStore())
	if err := nodes.Add(ctx, apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1_000_000})); err != nil {
		t.Fatal(err)
	}
	sched := NewScheduler(nodes, telemetry.NewLog(), 11)

	// The buffer reaches one batch on the 8th transition, after which every
	// successful schedule runs exactly one replay update; 17 schedules land
	// the update counter exactly on 10, the first sync boundary.
	for i := 0; i < 17; i++ {
		pod := apiv1.NewPod("default", fmt.Sprintf("pod-%d", i), []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 1}},
		}})
		if _, err := sched.Schedule(ctx, pod); err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
	}
	if sched.updates != targetSyncEvery {
		t.Fatalf("replay updates = %d, want %d", sched.updates, targetSyncEvery)
	}

	probe := rowMat(make([]float64, columnsPerNode*sched.k))
	for i := range probe.RawRowView(0) {
		probe.Set(0, i, float64(i)*0.05)
	}
	if !mat.Equal(sched.target.Forward(probe), sched.online.Forward(probe)) {
		t.Fatal("expected target network to exactly equal online network at the sync boundary")
	}
}
