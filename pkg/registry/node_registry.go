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

// Package registry mediates all node and pod mutations.
// Both registries share the same cache discipline: a sync.RWMutex
// guarding the in-memory map, held only around the mutation itself,
// rather than across any store or runtime I/O.
package registry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/log"
	"github.com/gmnkube/control-plane/pkg/store"
)

const (
	storeRetryAttempts = 3
	allCacheTTL        = 2 * time.Second
)

// NodeRegistry is the process-wide name -> node map, persisted to the
// store on every mutation.
type NodeRegistry struct {
	mu    sync.RWMutex
	nodes map[string]*apiv1.Node
	store store.Interface
	// allCache bounds read amplification from repeated all() calls during
	// a scheduling burst. It is invalidated on every successful mutation
	// so it can never serve a snapshot older than the last
	// bind/unbind/setStatus.
	allCache *cache.Cache
	// heartbeatTTL, when nonzero, ties a Ready node's store key to a
	// fresh lease on every SetStatus(Ready), so the key expires instead
	// of going stale if the node never reports Ready again.
	heartbeatTTL int64
}

// NewNodeRegistry constructs an empty registry backed by s.
func NewNodeRegistry(s store.Interface) *NodeRegistry {
	return &NodeRegistry{
		nodes:    map[string]*apiv1.Node{},
		store:    s,
		allCache: cache.New(allCacheTTL, 2*allCacheTTL),
	}
}

// WithHeartbeat enables the lease-backed node heartbeat with the given
// TTL in seconds.
func (r *NodeRegistry) WithHeartbeat(ttlSeconds int64) *NodeRegistry {
	r.heartbeatTTL = ttlSeconds
	return r
}

// persist writes a node snapshot to the store. Callers must pass a copy
// taken under r.mu, never the live map entry: a concurrent mutation of
// the same node would otherwise race the marshal.
func (r *NodeRegistry) persist(ctx context.Context, snap *apiv1.Node) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return cperrors.Internal(err)
	}
	err = retry.Do(func() error {
		return r.store.Put(ctx, store.NodeKey(snap.Name), body)
	}, retry.Attempts(storeRetryAttempts), retry.Context(ctx))
	if err != nil {
		return cperrors.StoreUnavailable(err)
	}
	return nil
}

func (r *NodeRegistry) invalidateAllCache() {
	r.allCache.Flush()
}

// Add registers a new node, persisting its snapshot to the store. Fails
// AlreadyExists if the name is taken.
func (r *NodeRegistry) Add(ctx context.Context, n *apiv1.Node) error {
	r.mu.Lock()
	if _, ok := r.nodes[n.Name]; ok {
		r.mu.Unlock()
		return cperrors.AlreadyExists("node %q already registered", n.Name)
	}
	r.nodes[n.Name] = n
	snap := n.Snapshot()
	r.mu.Unlock()

	if err := r.persist(ctx, snap); err != nil {
		// revert in-memory state to stay consistent with the last
		// durable snapshot.
		r.mu.Lock()
		delete(r.nodes, n.Name)
		r.mu.Unlock()
		return err
	}
	r.invalidateAllCache()
	return nil
}

// Remove deregisters a node. Fails InvalidInput if the node still holds
// pods; force bypasses that check.
func (r *NodeRegistry) Remove(ctx context.Context, name string, force bool) error {
	r.mu.Lock()
	n, ok := r.nodes[name]
	if !ok {
		r.mu.Unlock()
		return cperrors.NotFound("node %q not found", name)
	}
	if len(n.Pods) > 0 && !force {
		r.mu.Unlock()
		return cperrors.InvalidInput("node %q still holds %d pod(s); use force to deregister anyway", name, len(n.Pods))
	}
	delete(r.nodes, name)
	r.mu.Unlock()

	if err := retry.Do(func() error {
		return r.store.Delete(ctx, store.NodeKey(name))
	}, retry.Attempts(storeRetryAttempts), retry.Context(ctx)); err != nil {
		r.mu.Lock()
		r.nodes[name] = n
		r.mu.Unlock()
		return cperrors.StoreUnavailable(err)
	}
	r.invalidateAllCache()
	return nil
}

// Get returns the in-memory node, or NotFound.
func (r *NodeRegistry) Get(name string) (*apiv1.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	if !ok {
		return nil, cperrors.NotFound("node %q not found", name)
	}
	return n.Snapshot(), nil
}

// Snapshot returns a copy-on-read slice of every in-memory node, ordered
// by name so callers that map fleet indices to actions see a stable
// ordering, safe for lock-free scoring.
func (r *NodeRegistry) Snapshot() []*apiv1.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*apiv1.Node, 0, len(r.nodes))
	for _, n := range lo.Values(r.nodes) {
		out = append(out, n.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns the current snapshot from the store rather than the
// in-memory map, so external watchers see the same state the store does
//. Results are cached briefly to bound read amplification.
func (r *NodeRegistry) All(ctx context.Context) ([]*apiv1.Node, error) {
	const cacheKey = "all"
	if cached, ok := r.allCache.Get(cacheKey); ok {
		return cached.([]*apiv1.Node), nil
	}
	kvs, err := r.store.GetPrefix(ctx, store.NodePrefix())
	if err != nil {
		return nil, cperrors.StoreUnavailable(err)
	}
	out := make([]*apiv1.Node, 0, len(kvs))
	for _, kv := range kvs {
		var n apiv1.Node
		if err := json.Unmarshal(kv.Value, &n); err != nil {
			return nil, cperrors.Internal(err)
		}
		out = append(out, &n)
	}
	r.allCache.SetDefault(cacheKey, out)
	return out, nil
}

// Bind admits pod onto node nodeName, updating accounting and the store.
// Fails InsufficientResources if the node cannot schedule the pod's
// requests, or NotFound if the node is unknown. A context cancelled
// before the accounting transition leaves the node untouched.
func (r *NodeRegistry) Bind(ctx context.Context, pod *apiv1.Pod, nodeName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := pod.Key()
	r.mu.Lock()
	n, ok := r.nodes[nodeName]
	if !ok {
		r.mu.Unlock()
		return cperrors.NotFound("node %q not found", nodeName)
	}
	if !n.CanSchedule(pod.Resources.Requests) {
		r.mu.Unlock()
		return cperrors.InsufficientResources("node %q cannot satisfy pod %s/%s requests", nodeName, pod.Namespace, pod.Name)
	}
	n.AddPod(key, pod.Resources.Requests)
	snap := n.Snapshot()
	r.mu.Unlock()

	if err := r.persist(ctx, snap); err != nil {
		r.mu.Lock()
		n.RemovePod(key, pod.Resources.Requests)
		r.mu.Unlock()
		return err
	}
	r.invalidateAllCache()
	pod.NodeName = nodeName
	return nil
}

// Unbind removes pod from node nodeName. Removing a pod that was never
// admitted is a no-op, not an error: Unbind logs a warning and returns
// removed=false.
func (r *NodeRegistry) Unbind(ctx context.Context, pod *apiv1.Pod, nodeName string) (removed bool, err error) {
	key := pod.Key()
	r.mu.Lock()
	n, ok := r.nodes[nodeName]
	if !ok {
		r.mu.Unlock()
		return false, cperrors.NotFound("node %q not found", nodeName)
	}
	removed = n.RemovePod(key, pod.Resources.Requests)
	var snap *apiv1.Node
	if removed {
		snap = n.Snapshot()
	}
	r.mu.Unlock()
	if !removed {
		log.FromContext(ctx).Warnw("unbind: pod was not admitted on node", "node", nodeName, "namespace", pod.Namespace, "pod", pod.Name)
		return false, nil
	}

	if err := r.persist(ctx, snap); err != nil {
		r.mu.Lock()
		n.AddPod(key, pod.Resources.Requests)
		r.mu.Unlock()
		return true, err
	}
	r.invalidateAllCache()
	if pod.NodeName == nodeName {
		pod.NodeName = ""
	}
	return true, nil
}

// SetStatus changes a node's status unconditionally; it never evicts
// already-bound pods.
func (r *NodeRegistry) SetStatus(ctx context.Context, name string, status apiv1.NodeStatus) error {
	r.mu.Lock()
	n, ok := r.nodes[name]
	if !ok {
		r.mu.Unlock()
		return cperrors.NotFound("node %q not found", name)
	}
	previous := n.Status
	n.SetStatus(status)
	snap := n.Snapshot()
	r.mu.Unlock()

	persist := r.persist
	if status == apiv1.NodeReady && r.heartbeatTTL > 0 {
		persist = r.persistWithHeartbeat
	}
	if err := persist(ctx, snap); err != nil {
		r.mu.Lock()
		n.SetStatus(previous)
		r.mu.Unlock()
		return err
	}
	r.invalidateAllCache()
	return nil
}

// persistWithHeartbeat writes a node snapshot (taken under r.mu, same
// contract as persist) under a fresh TTL lease, so the key expires unless
// a later SetStatus(Ready) refreshes it.
func (r *NodeRegistry) persistWithHeartbeat(ctx context.Context, snap *apiv1.Node) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return cperrors.Internal(err)
	}
	err = retry.Do(func() error {
		leaseID, err := r.store.Lease(ctx, r.heartbeatTTL)
		if err != nil {
			return err
		}
		return r.store.PutWithLease(ctx, store.NodeKey(snap.Name), body, leaseID)
	}, retry.Attempts(storeRetryAttempts), retry.Context(ctx))
	if err != nil {
		return cperrors.StoreUnavailable(err)
	}
	return nil
}
