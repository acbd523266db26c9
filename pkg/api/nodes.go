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
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) createNode(w http.ResponseWriter, r *http.Request) {
	var m nodeManifest
	if err := decodeStrict(r, &m); err != nil {
		writeError(w, err)
		return
	}
	n, err := m.toNode()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Nodes.Add(r.Context(), n); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Nodes.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, err := s.Nodes.Get(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force := r.URL.Query().Get("force") == "true"
	if err := s.Nodes.Remove(r.Context(), name, force); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scheduleOnNode binds a named, already-created pod directly to this node,
// bypassing the scorer.
func (s *Server) scheduleOnNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var m scheduleManifest
	if err := decodeStrict(r, &m); err != nil {
		writeError(w, err)
		return
	}
	pod, err := s.Pods.Get(m.Namespace, m.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.Nodes.Get(name); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Nodes.Bind(r.Context(), pod, name); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Pods.SetNodeName(r.Context(), m.Namespace, m.Name, name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}
