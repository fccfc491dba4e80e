// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/inqbatorchris/aimee-sub008/internal/engine"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// workflowsHandler serves workflow CRUD and manual runs.
type workflowsHandler struct {
	engine *engine.Engine
}

func (h *workflowsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", h.handleCreate)
	mux.HandleFunc("GET /api/workflows", h.handleList)
	mux.HandleFunc("GET /api/workflows/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/workflows/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/workflows/{id}", h.handleDelete)
	mux.HandleFunc("POST /api/workflows/{id}/run", h.handleRun)
}

func (h *workflowsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var def workflow.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := h.engine.CreateWorkflow(r.Context(), &def)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *workflowsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.engine.ListWorkflows(r.Context(), r.URL.Query().Get("organization_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": workflows})
}

func (h *workflowsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	def, err := h.engine.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *workflowsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var def workflow.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	def.ID = r.PathValue("id")

	updated, err := h.engine.UpdateWorkflow(r.Context(), &def)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *workflowsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type manualRunRequest struct {
	ActorID string         `json:"actorId"`
	Payload map[string]any `json:"payload"`
}

// handleRun starts a manual run. The response is 202: execution is
// asynchronous and the caller polls the run for the outcome.
func (h *workflowsHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req manualRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	run, err := h.engine.StartRun(r.Context(), r.PathValue("id"), "manual", req.ActorID, req.Payload)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}
