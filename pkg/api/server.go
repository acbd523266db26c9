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

// Package api is the HTTP surface of the control plane: a thin
// chi.Router translating JSON manifests into calls on the registries and
// schedulers a Server composes explicitly. There is no package-level
// registry anywhere in this tree.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
	"github.com/gmnkube/control-plane/pkg/registry"
	"github.com/gmnkube/control-plane/pkg/runtime"
	"github.com/gmnkube/control-plane/pkg/scheduling/balanced"
	"github.com/gmnkube/control-plane/pkg/scheduling/ddqn"
	"github.com/gmnkube/control-plane/pkg/store"
	"github.com/gmnkube/control-plane/pkg/telemetry"
)

// Server composes every collaborator the HTTP handlers need. It carries
// no mutable state of its own beyond what the registries/schedulers
// already guard internally.
type Server struct {
	Nodes    *registry.NodeRegistry
	Pods     *registry.PodRegistry
	Balanced *balanced.Scheduler
	DDQN     *ddqn.Scheduler

	BalancedTelemetry *telemetry.Log
	DDQNTelemetry     *telemetry.Log
}

// NewServer wires a Server from a store implementation, matching the
// composition cmd/controller performs at startup.
func NewServer(s store.Interface, ddqnSeed int64) *Server {
	nodes := registry.NewNodeRegistry(s)
	pods := registry.NewPodRegistry(s, runtime.Noop{})

	balancedLog := telemetry.NewLog()
	ddqnLog := telemetry.NewLog()

	return &Server{
		Nodes:             nodes,
		Pods:              pods,
		Balanced:          balanced.NewScheduler(balanced.DefaultWeights, nodes, balancedLog),
		DDQN:              ddqn.NewScheduler(nodes, ddqnLog, ddqnSeed),
		BalancedTelemetry: balancedLog,
		DDQNTelemetry:     ddqnLog,
	}
}

// NewRouter builds the chi.Router exposing every route the control plane
// serves.
func (s *Server) NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/nodes", func(r chi.Router) {
		r.Post("/", s.createNode)
		r.Get("/", s.listNodes)
		r.Get("/{name}", s.getNode)
		r.Delete("/{name}", s.deleteNode)
		r.Post("/{name}/schedule", s.scheduleOnNode)
	})

	r.Route("/pods", func(r chi.Router) {
		r.Post("/", s.createPod)
		r.Get("/", s.listPods)
		r.Delete("/", s.deletePodByQuery)
		r.Get("/{name}", s.getPod)
		r.Delete("/{name}", s.deletePod)
		r.Post("/{name}/start", s.startPod)
		r.Post("/{name}/stop", s.stopPod)
		r.Post("/{name}/restart", s.restartPod)
	})

	r.Post("/kube_schedule", s.kubeSchedule)
	r.Post("/DDQN_schedule", s.ddqnSchedule)
	r.Post("/save_kube_schedule", s.saveKubeSchedule)
	r.Post("/save_DDQN_schedule", s.saveDDQNSchedule)

	return r
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its taxonomy status code and writes a
// small JSON envelope; RuntimeFailure is surfaced as 200 per the taxonomy,
// carried in the body rather than the status line.
func writeError(w http.ResponseWriter, err error) {
	var cpErr *cperrors.Error
	if errors.As(err, &cpErr) {
		writeJSON(w, cpErr.Code(), map[string]string{"error": cpErr.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return cperrors.InvalidInput("malformed request body: %v", err)
	}
	return nil
}
