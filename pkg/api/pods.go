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

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
)

func (s *Server) createPod(w http.ResponseWriter, r *http.Request) {
	var m podManifest
	if err := decodeStrict(r, &m); err != nil {
		writeError(w, err)
		return
	}
	containers, err := m.toContainers()
	if err != nil {
		writeError(w, err)
		return
	}
	pod, err := s.Pods.Create(r.Context(), m.Metadata.Namespace, m.Metadata.Name, containers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pod)
}

func (s *Server) listPods(w http.ResponseWriter, r *http.Request) {
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		writeJSON(w, http.StatusOK, s.Pods.ListByNamespace(ns))
		return
	}
	writeJSON(w, http.StatusOK, s.Pods.ListAll())
}

func (s *Server) getPod(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ns := r.URL.Query().Get("namespace")
	pod, err := s.Pods.Get(ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (s *Server) deletePod(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ns := r.URL.Query().Get("namespace")
	if err := s.Pods.Delete(r.Context(), ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deletePodByQuery(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, cperrors.InvalidInput("DELETE /pods requires a name query parameter"))
		return
	}
	if err := s.Pods.Delete(r.Context(), ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startPod(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.Pods.Start)
}

func (s *Server) stopPod(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.Pods.Stop)
}

func (s *Server) restartPod(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.Pods.Restart)
}

// lifecycle dispatches a POST /pods/{name}/{start|stop|restart} call to
// op and reports the resulting pod (partial failure surfaces as a
// Failed pod status and a 200 RuntimeFailure error body, not a propagated
// request failure).
func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ns, name string) error) {
	name := chi.URLParam(r, "name")
	ns := r.URL.Query().Get("namespace")
	err := op(r.Context(), ns, name)
	if err != nil && !cperrors.Is(err, cperrors.KindRuntimeFailure) {
		writeError(w, err)
		return
	}
	pod, getErr := s.Pods.Get(ns, name)
	if getErr != nil {
		writeError(w, getErr)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"pod": pod, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pod)
}
