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

	cperrors "github.com/gmnkube/control-plane/pkg/apis/errors"
)

func (s *Server) kubeSchedule(w http.ResponseWriter, r *http.Request) {
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
	nodeName, err := s.Balanced.Schedule(r.Context(), pod)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Pods.SetNodeName(r.Context(), m.Namespace, m.Name, nodeName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"node": nodeName})
}

func (s *Server) ddqnSchedule(w http.ResponseWriter, r *http.Request) {
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
	nodeName, err := s.DDQN.Schedule(r.Context(), pod)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Pods.SetNodeName(r.Context(), m.Namespace, m.Name, nodeName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"node": nodeName})
}

func (s *Server) saveKubeSchedule(w http.ResponseWriter, r *http.Request) {
	s.saveTelemetry(w, r, s.BalancedTelemetry)
}

func (s *Server) saveDDQNSchedule(w http.ResponseWriter, r *http.Request) {
	s.saveTelemetry(w, r, s.DDQNTelemetry)
}

func (s *Server) saveTelemetry(w http.ResponseWriter, r *http.Request, log interface{ Render(string) error; Len() int }) {
	var m renderManifest
	if err := decodeStrict(r, &m); err != nil {
		writeError(w, err)
		return
	}
	if m.Path == "" {
		writeError(w, cperrors.InvalidInput("save_schedule requires a path"))
		return
	}
	if err := log.Render(m.Path); err != nil {
		writeError(w, cperrors.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": m.Path, "records": log.Len()})
}
