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
	"github.com/gmnkube/control-plane/pkg/runtime"
	"github.com/gmnkube/control-plane/pkg/store"
)

var _ = Describe("PodRegistry", func() {
	var (
		st   *store.MemoryStore
		rt   *runtime.Fake
		pods *registry.PodRegistry
	)

	BeforeEach(func() {
		st = store.NewMemoryStore()
		rt = runtime.NewFake()
		pods = registry.NewPodRegistry(st, rt)
	})

	containers := func() []apiv1.Container {
		return []apiv1.Container{{
			Name:      "app",
			Image:     "example/app:latest",
			Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 100}},
		}}
	}

	It("creates a pod in Pending status and rejects a duplicate", func() {
		p, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(apiv1.PodPending))

		_, err = pods.Create(ctx, "default", "web", containers())
		Expect(cperrors.Is(err, cperrors.KindAlreadyExists)).To(BeTrue())
	})

	It("returns an independent copy from Get", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())

		p, err := pods.Get("default", "web")
		Expect(err).NotTo(HaveOccurred())
		p.Status = apiv1.PodFailed
		p.Containers[0].Status = apiv1.ContainerFailed

		fresh, err := pods.Get("default", "web")
		Expect(err).NotTo(HaveOccurred())
		Expect(fresh.Status).To(Equal(apiv1.PodPending))
		Expect(fresh.Containers[0].Status).NotTo(Equal(apiv1.ContainerFailed))
	})

	It("records a binding via SetNodeName", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())

		Expect(pods.SetNodeName(ctx, "default", "web", "n1")).To(Succeed())

		p, err := pods.Get("default", "web")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.NodeName).To(Equal("n1"))

		err = pods.SetNodeName(ctx, "default", "ghost", "n1")
		Expect(cperrors.Is(err, cperrors.KindNotFound)).To(BeTrue())
	})

	It("lists pods by namespace and across all namespaces", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())
		_, err = pods.Create(ctx, "other", "api", containers())
		Expect(err).NotTo(HaveOccurred())

		Expect(pods.ListByNamespace("default")).To(HaveLen(1))
		all := pods.ListAll()
		Expect(all).To(HaveLen(2))
	})

	It("starts every container and transitions the pod to Running", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())

		Expect(pods.Start(ctx, "default", "web")).To(Succeed())

		p, err := pods.Get("default", "web")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(apiv1.PodRunning))
		Expect(p.Containers[0].Status).To(Equal(apiv1.ContainerRunning))
		Expect(rt.StartCount("app")).To(Equal(1))
	})

	It("marks the pod Failed and surfaces RuntimeFailure on a partial start failure", func() {
		cs := []apiv1.Container{
			{Name: "good", Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 100}}},
			{Name: "bad", Resources: apiv1.ResourceRequirements{Requests: apiv1.ResourceVector{CPU: 100}}},
		}
		rt.FailStart["bad"] = true
		_, err := pods.Create(ctx, "default", "web", cs)
		Expect(err).NotTo(HaveOccurred())

		err = pods.Start(ctx, "default", "web")
		Expect(cperrors.Is(err, cperrors.KindRuntimeFailure)).To(BeTrue())

		p, getErr := pods.Get("default", "web")
		Expect(getErr).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(apiv1.PodFailed))
		Expect(p.Containers[0].Status).To(Equal(apiv1.ContainerRunning))
		Expect(p.Containers[1].Status).To(Equal(apiv1.ContainerFailed))
	})

	It("stops a running pod and transitions it to Stopped", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())
		Expect(pods.Start(ctx, "default", "web")).To(Succeed())

		Expect(pods.Stop(ctx, "default", "web")).To(Succeed())

		p, err := pods.Get("default", "web")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(apiv1.PodStopped))
		Expect(rt.StopCount("app")).To(Equal(1))
	})

	It("restarts by composing Stop then Start", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())
		Expect(pods.Start(ctx, "default", "web")).To(Succeed())

		Expect(pods.Restart(ctx, "default", "web")).To(Succeed())

		Expect(rt.StartCount("app")).To(Equal(2))
		Expect(rt.StopCount("app")).To(Equal(1))
		p, _ := pods.Get("default", "web")
		Expect(p.Status).To(Equal(apiv1.PodRunning))
	})

	It("stops a running pod before deleting it", func() {
		_, err := pods.Create(ctx, "default", "web", containers())
		Expect(err).NotTo(HaveOccurred())
		Expect(pods.Start(ctx, "default", "web")).To(Succeed())

		Expect(pods.Delete(ctx, "default", "web")).To(Succeed())
		Expect(rt.StopCount("app")).To(Equal(1))

		_, err = pods.Get("default", "web")
		Expect(cperrors.Is(err, cperrors.KindNotFound)).To(BeTrue())
	})

	It("returns NotFound deleting an unknown pod", func() {
		err := pods.Delete(ctx, "default", "ghost")
		Expect(cperrors.Is(err, cperrors.KindNotFound)).To(BeTrue())
	})
})
