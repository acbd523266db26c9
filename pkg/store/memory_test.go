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
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "nodes/n1", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := s.Get(ctx, "nodes/n1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(v) != "payload" {
		t.Fatalf("Get = (%q, %v), want (\"payload\", true)", v, ok)
	}

	if _, ok, _ := s.Get(ctx, "nodes/missing"); ok {
		t.Fatal("expected Get on a missing key to report ok=false")
	}
}

func TestMemoryStoreGetPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "pods/default/a", []byte("a"))
	_ = s.Put(ctx, "pods/default/b", []byte("b"))
	_ = s.Put(ctx, "pods/other/c", []byte("c"))

	kvs, err := s.GetPrefix(ctx, "pods/default/")
	if err != nil {
		t.Fatalf("GetPrefix: %v", err)
	}
	if len(kvs) != 2 {
		t.Fatalf("GetPrefix returned %d entries, want 2", len(kvs))
	}
}

func TestMemoryStoreDeleteAndDeletePrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, "nodes/n1", []byte("x"))
	if err := s.Delete(ctx, "nodes/n1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "nodes/n1"); ok {
		t.Fatal("expected key gone after Delete")
	}

	_ = s.Put(ctx, "pods/default/a/status", []byte("Running"))
	_ = s.Put(ctx, "pods/default/a", []byte("{}"))
	if err := s.DeletePrefix(ctx, "pods/default/a"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	kvs, _ := s.GetPrefix(ctx, "pods/default/")
	if len(kvs) != 0 {
		t.Fatalf("expected DeletePrefix to remove every matching key, got %v", kvs)
	}
}

func TestMemoryStoreWatch(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "nodes/")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := s.Put(context.Background(), "nodes/n1", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != EventPut || ev.KV.Key != "nodes/n1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestMemoryStoreLease(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id1, err := s.Lease(ctx, 30)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	id2, _ := s.Lease(ctx, 30)
	if id1 == id2 {
		t.Fatal("expected distinct lease IDs")
	}
	if err := s.PutWithLease(ctx, "nodes/leased", []byte("x"), id1); err != nil {
		t.Fatalf("PutWithLease: %v", err)
	}
	v, ok, _ := s.Get(ctx, "nodes/leased")
	if !ok || string(v) != "x" {
		t.Fatalf("PutWithLease did not store the value: %q, %v", v, ok)
	}
}
