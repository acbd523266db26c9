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

package registry_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apiv1 "github.com/gmnkube/control-plane/pkg/apis/v1"
	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/registry"
	"github.com/gmnkube/control-plane/pkg/store"
)

var _ = Describe("NodeRegistry", func() {
	var (
		st  *store.MemoryStore
		reg *registry.NodeRegistry
	)

	BeforeEach(func() {
		st = store.NewMemoryStore()
		reg = registry.NewNodeRegistry(st)
	})

	It("adds a node and rejects a duplicate name", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		dup := apiv1.NewNode("n1", "10.0.0.2", apiv1.ResourceVector{CPU: 2000})
		err := reg.Add(ctx, dup)
		Expect(err).To(HaveOccurred())
		Expect(cperrors.Is(err, cperrors.KindAlreadyExists)).To(BeTrue())
	})

	It("persists the node to the store", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		_, ok, err := st.Get(ctx, store.NodeKey("n1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("returns NotFound for an unknown node", func() {
		_, err := reg.Get("ghost")
		Expect(cperrors.Is(err, cperrors.KindNotFound)).To(BeTrue())
	})

	It("binds a pod within capacity and updates accounting", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000, Memory: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		pod := apiv1.NewPod("default", "web", []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 300, Memory: 300}},
		}})

		Expect(reg.Bind(ctx, pod, "n1")).To(Succeed())
		Expect(pod.NodeName).To(Equal("n1"))

		got, err := reg.Get("n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Allocated).To(Equal(apiv1.ResourceVector{CPU: 300, Memory: 300}))
		Expect(got.HasPod(pod.Key())).To(BeTrue())
	})

	It("refuses to bind a pod that exceeds free capacity", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 100})
		Expect(reg.Add(ctx, n)).To(Succeed())

		pod := apiv1.NewPod("default", "web", []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 1000}},
		}})

		err := reg.Bind(ctx, pod, "n1")
		Expect(cperrors.Is(err, cperrors.KindInsufficientResource)).To(BeTrue())
	})

	It("unbinds a pod and restores capacity", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		pod := apiv1.NewPod("default", "web", []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 300}},
		}})
		Expect(reg.Bind(ctx, pod, "n1")).To(Succeed())

		removed, err := reg.Unbind(ctx, pod, "n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeTrue())
		Expect(pod.NodeName).To(BeEmpty())

		got, _ := reg.Get("n1")
		Expect(got.Allocated).To(Equal(apiv1.ResourceVector{}))
	})

	It("treats unbinding a never-admitted pod as a no-op", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		pod := apiv1.NewPod("default", "ghost", nil)
		removed, err := reg.Unbind(ctx, pod, "n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeFalse())
	})

	It("refuses to remove a node still holding pods unless forced", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		pod := apiv1.NewPod("default", "web", []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 300}},
		}})
		Expect(reg.Bind(ctx, pod, "n1")).To(Succeed())

		err := reg.Remove(ctx, "n1", false)
		Expect(cperrors.Is(err, cperrors.KindInvalidInput)).To(BeTrue())

		Expect(reg.Remove(ctx, "n1", true)).To(Succeed())
		_, err = reg.Get("n1")
		Expect(cperrors.Is(err, cperrors.KindNotFound)).To(BeTrue())
	})

	It("never evicts bound pods when transitioning away from Ready", func() {
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		pod := apiv1.NewPod("default", "web", []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 300}},
		}})
		Expect(reg.Bind(ctx, pod, "n1")).To(Succeed())

		Expect(reg.SetStatus(ctx, "n1", apiv1.NodeMaintenance)).To(Succeed())

		got, err := reg.Get("n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(apiv1.NodeMaintenance))
		Expect(got.HasPod(pod.Key())).To(BeTrue())

		newPod := apiv1.NewPod("default", "other", []apiv1.Container{{
			Name:      "app",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 100}},
		}})
		err = reg.Bind(ctx, newPod, "n1")
		Expect(cperrors.Is(err, cperrors.KindInsufficientResource)).To(BeTrue())
	})

	It("refreshes the node key under a lease when the heartbeat is enabled", func() {
		reg = registry.NewNodeRegistry(st).WithHeartbeat(30)
		n := apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000})
		Expect(reg.Add(ctx, n)).To(Succeed())

		Expect(reg.SetStatus(ctx, "n1", apiv1.NodeReady)).To(Succeed())

		_, ok, err := st.Get(ctx, store.NodeKey("n1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("lists every node via Snapshot and via the store-backed All", func() {
		Expect(reg.Add(ctx, apiv1.NewNode("n1", "10.0.0.1", apiv1.ResourceVector{CPU: 1000}))).To(Succeed())
		Expect(reg.Add(ctx, apiv1.NewNode("n2", "10.0.0.2", apiv1.ResourceVector{CPU: 1000}))).To(Succeed())

		Expect(reg.Snapshot()).To(HaveLen(2))

		all, err := reg.All(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(2))
	})
})
