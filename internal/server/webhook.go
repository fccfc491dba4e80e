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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inqbatorchris/aimee-sub008/internal/engine"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// maxWebhookBody caps inbound webhook payloads at 1 MB.
const maxWebhookBody = 1 << 20

// webhookHandler receives platform events and fans them out to the
// workflows listening for them.
type webhookHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func (h *webhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/{platform}/{integrationID}/{triggerKey}", h.handleEvent)
}

func (h *webhookHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	integrationID := r.PathValue("integrationID")
	triggerKey := r.PathValue("triggerKey")

	registration, err := h.engine.GetIntegrationTrigger(r.Context(), integrationID, triggerKey)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !registration.Active {
		writeError(w, http.StatusNotFound, "trigger is not active")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	if registration.Secret != "" {
		if err := verifySignature(r.Header.Get("X-Webhook-Signature"), body, registration.Secret); err != nil {
			h.logger.Warn("webhook signature rejected",
				"platform", platform,
				"integration_id", integrationID,
				"trigger_key", triggerKey,
				"error", err)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	payload := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
			return
		}
	}

	integration, err := h.engine.GetIntegration(r.Context(), integrationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	workflows, err := h.engine.ListWorkflows(r.Context(), integration.OrganizationID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var runIDs []string
	for _, def := range workflows {
		if !listensTo(def, integrationID, triggerKey) {
			continue
		}

		run, err := h.engine.StartRun(r.Context(), def.ID, "webhook", "", payload)
		if err != nil {
			h.logger.Error("starting webhook run",
				"workflow_id", def.ID,
				"trigger_key", triggerKey,
				"error", err)
			continue
		}
		runIDs = append(runIDs, run.ID)
	}

	h.logger.Info("webhook received",
		"platform", platform,
		"integration_id", integrationID,
		"trigger_key", triggerKey,
		"runs_started", len(runIDs))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"runIds": runIDs,
	})
}

// listensTo reports whether a workflow subscribes to the given trigger.
// The trigger config may pin a specific integration; absent that, any
// integration delivering the key matches.
func listensTo(def *workflow.Definition, integrationID, triggerKey string) bool {
	if !def.Enabled || def.TriggerType != workflow.TriggerTypeWebhook {
		return false
	}
	key, _ := def.TriggerConfig["trigger_key"].(string)
	if key != triggerKey {
		return false
	}
	if pinned, ok := def.TriggerConfig["integration_id"].(string); ok && pinned != "" && pinned != integrationID {
		return false
	}
	return true
}

// verifySignature checks an HMAC-SHA256 signature over the raw body.
// Accepts "sha256=<hex>" or a bare hex digest.
func verifySignature(header string, body []byte, secret string) error {
	if header == "" {
		return fmt.Errorf("missing X-Webhook-Signature header")
	}

	sig := header
	if algo, rest, found := strings.Cut(header, "="); found {
		if algo != "sha256" {
			return fmt.Errorf("unsupported algorithm %q", algo)
		}
		sig = rest
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
