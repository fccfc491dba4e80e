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
)

// integrationsHandler serves integration and catalog endpoints.
// Credential blobs and webhook secrets are excluded from responses at
// the type level.
type integrationsHandler struct {
	engine *engine.Engine
}

func (h *integrationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/integrations", h.handleCreate)
	mux.HandleFunc("GET /api/integrations", h.handleList)
	mux.HandleFunc("GET /api/integrations/{id}", h.handleGet)
	mux.HandleFunc("DELETE /api/integrations/{id}", h.handleDelete)
	mux.HandleFunc("POST /api/integrations/{id}/test", h.handleTest)
	mux.HandleFunc("PUT /api/integrations/{id}/credentials", h.handleUpdateCredentials)
	mux.HandleFunc("GET /api/integrations/{id}/triggers", h.handleListTriggers)
	mux.HandleFunc("GET /api/integrations/{id}/actions", h.handleListActions)
	mux.HandleFunc("GET /api/integrations/{id}/registrations", h.handleListRegistrations)
}

type createIntegrationRequest struct {
	OrganizationID string            `json:"organizationId"`
	PlatformType   string            `json:"platformType"`
	Name           string            `json:"name"`
	Credentials    map[string]string `json:"credentials"`
	Metadata       map[string]any    `json:"metadata"`
}

func (h *integrationsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	integration, err := h.engine.CreateIntegration(r.Context(), req.OrganizationID, req.PlatformType, req.Name, req.Credentials, req.Metadata)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, integration)
}

func (h *integrationsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	integrations, err := h.engine.ListIntegrations(r.Context(), r.URL.Query().Get("organization_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": integrations})
}

func (h *integrationsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	integration, err := h.engine.GetIntegration(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

func (h *integrationsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteIntegration(r.Context(), r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *integrationsHandler) handleTest(w http.ResponseWriter, r *http.Request) {
	integration, err := h.engine.TestIntegration(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

type updateCredentialsRequest struct {
	Credentials map[string]string `json:"credentials"`
}

func (h *integrationsHandler) handleUpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req updateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	integration, err := h.engine.UpdateIntegrationCredentials(r.Context(), r.PathValue("id"), req.Credentials)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

func (h *integrationsHandler) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.engine.ListTriggerDefinitions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggers": triggers})
}

func (h *integrationsHandler) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.engine.ListActionDefinitions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *integrationsHandler) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	registrations, err := h.engine.ListIntegrationTriggers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": registrations})
}
