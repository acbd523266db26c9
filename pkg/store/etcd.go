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

package store

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore wraps a go.etcd.io/etcd/client/v3 connection: a bare
// *clientv3.Client plus the handful of calls the control plane needs,
// without k3s's revision-gated transactional Create/Update semantics.
// This layer is last-write-wins rather than an MVCC-aware store; prefix
// reads return values in no particular order.
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore dials the given endpoints with a bounded startup timeout.
// The dial error is returned as is; the process entrypoint maps a dial or
// startup probe failure to exit code 2.
func NewEtcdStore(endpoints []string, dialTimeout time.Duration) (*EtcdStore, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdStore{client: c}, nil
}

func (s *EtcdStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.Put(ctx, key, string(value))
	return err
}

func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (s *EtcdStore) GetPrefix(ctx context.Context, prefix string) ([]KeyValue, error) {
	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	out := make([]KeyValue, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, KeyValue{Key: string(kv.Key), Value: kv.Value})
	}
	return out, nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Delete(ctx, key)
	return err
}

// DeletePrefix is a single clientv3.OpDelete(prefix, WithPrefix) call,
// which etcd commits atomically through raft — stronger than the
// "best-effort" guarantee the Interface doc allows for.
func (s *EtcdStore) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := s.client.Delete(ctx, prefix, clientv3.WithPrefix())
	return err
}

func (s *EtcdStore) Watch(ctx context.Context, prefix string) (<-chan Event, error) {
	out := make(chan Event)
	wch := s.client.Watch(ctx, prefix, clientv3.WithPrefix())
	go func() {
		defer close(out)
		for resp := range wch {
			for _, ev := range resp.Events {
				et := EventPut
				if ev.Type == clientv3.EventTypeDelete {
					et = EventDelete
				}
				select {
				case out <- Event{Type: et, KV: KeyValue{Key: string(ev.Kv.Key), Value: ev.Kv.Value}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *EtcdStore) Lease(ctx context.Context, ttlSeconds int64) (int64, error) {
	resp, err := s.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return 0, err
	}
	return int64(resp.ID), nil
}

func (s *EtcdStore) PutWithLease(ctx context.Context, key string, value []byte, leaseID int64) error {
	_, err := s.client.Put(ctx, key, string(value), clientv3.WithLease(clientv3.LeaseID(leaseID)))
	return err
}

func (s *EtcdStore) Close() error { return s.client.Close() }
