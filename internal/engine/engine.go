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

// Package engine orchestrates integrations, workflows, and runs.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inqbatorchris/aimee-sub008/internal/adapter"
	"github.com/inqbatorchris/aimee-sub008/internal/catalog"
	"github.com/inqbatorchris/aimee-sub008/internal/discovery"
	"github.com/inqbatorchris/aimee-sub008/internal/query"
	"github.com/inqbatorchris/aimee-sub008/internal/scheduler"
	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/internal/vault"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// Compile-time interface assertions.
var (
	_ workflow.Dispatcher  = (*Engine)(nil)
	_ scheduler.RunStarter = (*Engine)(nil)
)

// Engine is the service layer: every API operation and every trigger
// path goes through here.
type Engine struct {
	store     store.Store
	vault     *vault.Vault
	adapters  *adapter.Registry
	importer  *catalog.Importer
	discovery *discovery.Service
	executor  *workflow.Executor
	logger    *slog.Logger
}

// New wires an engine from its collaborators.
func New(st store.Store, v *vault.Vault, adapters *adapter.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		store:     st,
		vault:     v,
		adapters:  adapters,
		importer:  catalog.NewImporter(st, logger),
		discovery: discovery.New(st, st, logger),
		logger:    logger,
	}
	e.executor = workflow.NewExecutor(catalog.NewResolver(st, st), e, logger)
	return e
}

// CreateIntegration encrypts the credentials, stores the integration in
// disconnected state, and imports the platform's capability catalog.
func (e *Engine) CreateIntegration(ctx context.Context, orgID, platform, name string, credentials map[string]string, metadata map[string]any) (*store.Integration, error) {
	if name == "" {
		return nil, &errors.ValidationError{Field: "name", Message: "name is required"}
	}
	if platform == "" {
		return nil, &errors.ValidationError{Field: "platformType", Message: "platform type is required"}
	}

	blob, err := e.vault.EncryptJSON(credentials)
	if err != nil {
		return nil, fmt.Errorf("encrypting credentials: %w", err)
	}

	now := time.Now()
	integration := &store.Integration{
		ID:              uuid.NewString(),
		OrganizationID:  orgID,
		PlatformType:    platform,
		Name:            name,
		CredentialsBlob: blob,
		Status:          store.IntegrationStatusDisconnected,
		Enabled:         true,
		Metadata:        metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.CreateIntegration(ctx, integration); err != nil {
		return nil, err
	}

	if _, err := e.importer.Import(ctx, integration.ID, platform); err != nil {
		return nil, fmt.Errorf("importing catalog: %w", err)
	}

	return integration, nil
}

// UpdateIntegrationCredentials re-encrypts and replaces the stored
// credentials, dropping the integration back to disconnected until the
// next connection test.
func (e *Engine) UpdateIntegrationCredentials(ctx context.Context, id string, credentials map[string]string) (*store.Integration, error) {
	integration, err := e.store.GetIntegration(ctx, id)
	if err != nil {
		return nil, err
	}

	blob, err := e.vault.EncryptJSON(credentials)
	if err != nil {
		return nil, fmt.Errorf("encrypting credentials: %w", err)
	}

	integration.CredentialsBlob = blob
	integration.Status = store.IntegrationStatusDisconnected
	integration.LastError = ""
	if err := e.store.UpdateIntegration(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// TestIntegration verifies the stored credentials decrypt and marks the
// integration connected. A connection transition runs trigger discovery
// so the platform's events become addressable.
//
// A credential failure marks the integration errored rather than
// returning a transport-shaped error: the caller needs to re-enter
// credentials, not retry.
func (e *Engine) TestIntegration(ctx context.Context, id string) (*store.Integration, error) {
	integration, err := e.store.GetIntegration(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	integration.LastTestedAt = &now

	if _, err := e.vault.DecryptJSON(integration.CredentialsBlob); err != nil {
		integration.Status = store.IntegrationStatusError
		integration.LastError = err.Error()
		if updateErr := e.store.UpdateIntegration(ctx, integration); updateErr != nil {
			return nil, updateErr
		}
		return integration, nil
	}

	wasConnected := integration.Status == store.IntegrationStatusConnected
	integration.Status = store.IntegrationStatusConnected
	integration.LastError = ""
	if err := e.store.UpdateIntegration(ctx, integration); err != nil {
		return nil, err
	}

	if !wasConnected {
		if _, err := e.discovery.Discover(ctx, integration.ID, integration.PlatformType); err != nil {
			e.logger.Error("trigger discovery failed",
				"integration_id", integration.ID,
				"error", err)
		}
	}

	return integration, nil
}

// GetIntegration returns one integration.
func (e *Engine) GetIntegration(ctx context.Context, id string) (*store.Integration, error) {
	return e.store.GetIntegration(ctx, id)
}

// ListIntegrations returns an organization's integrations.
func (e *Engine) ListIntegrations(ctx context.Context, orgID string) ([]*store.Integration, error) {
	return e.store.ListIntegrations(ctx, orgID)
}

// DeleteIntegration removes an integration and its dependents.
func (e *Engine) DeleteIntegration(ctx context.Context, id string) error {
	return e.store.DeleteIntegration(ctx, id)
}

// ListTriggerDefinitions returns the imported trigger catalog.
func (e *Engine) ListTriggerDefinitions(ctx context.Context, integrationID string) ([]*store.TriggerDefinition, error) {
	return e.store.ListTriggerDefinitions(ctx, integrationID)
}

// ListActionDefinitions returns the imported action catalog.
func (e *Engine) ListActionDefinitions(ctx context.Context, integrationID string) ([]*store.ActionDefinition, error) {
	return e.store.ListActionDefinitions(ctx, integrationID)
}

// GetIntegrationTrigger returns one live trigger registration.
func (e *Engine) GetIntegrationTrigger(ctx context.Context, integrationID, triggerKey string) (*store.IntegrationTrigger, error) {
	return e.store.GetIntegrationTrigger(ctx, integrationID, triggerKey)
}

// ListIntegrationTriggers returns the live trigger registrations.
func (e *Engine) ListIntegrationTriggers(ctx context.Context, integrationID string) ([]*store.IntegrationTrigger, error) {
	return e.store.ListIntegrationTriggers(ctx, integrationID)
}

// CreateWorkflow validates and stores a workflow, then reconciles its
// schedule.
func (e *Engine) CreateWorkflow(ctx context.Context, def *workflow.Definition) (*workflow.Definition, error) {
	if err := validateWorkflow(def); err != nil {
		return nil, err
	}

	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := e.store.CreateWorkflow(ctx, def); err != nil {
		return nil, err
	}
	if err := scheduler.Sync(ctx, e.store, def); err != nil {
		return nil, fmt.Errorf("syncing schedule: %w", err)
	}
	return def, nil
}

// UpdateWorkflow replaces a workflow definition and reconciles its
// schedule.
func (e *Engine) UpdateWorkflow(ctx context.Context, def *workflow.Definition) (*workflow.Definition, error) {
	if err := validateWorkflow(def); err != nil {
		return nil, err
	}

	def.UpdatedAt = time.Now()
	if err := e.store.UpdateWorkflow(ctx, def); err != nil {
		return nil, err
	}
	if err := scheduler.Sync(ctx, e.store, def); err != nil {
		return nil, fmt.Errorf("syncing schedule: %w", err)
	}
	return def, nil
}

// GetWorkflow returns one workflow definition.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*workflow.Definition, error) {
	return e.store.GetWorkflow(ctx, id)
}

// ListWorkflows returns an organization's workflows.
func (e *Engine) ListWorkflows(ctx context.Context, orgID string) ([]*workflow.Definition, error) {
	return e.store.ListWorkflows(ctx, orgID)
}

// DeleteWorkflow removes a workflow and its schedule.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	return e.store.DeleteWorkflow(ctx, id)
}

// GetRun returns one run.
func (e *Engine) GetRun(ctx context.Context, id string) (*store.Run, error) {
	return e.store.GetRun(ctx, id)
}

// ListRuns returns runs matching the filter.
func (e *Engine) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	return e.store.ListRuns(ctx, filter)
}

// ListActiveSchedules returns every active schedule.
func (e *Engine) ListActiveSchedules(ctx context.Context) ([]*store.Schedule, error) {
	return e.store.ListActiveSchedules(ctx)
}

// StartRun records a pending run and executes it in the background.
// The call returns as soon as the run is persisted; the outcome is only
// observable through the stored Run.
func (e *Engine) StartRun(ctx context.Context, workflowID, triggerSource, actorID string, payload map[string]any) (*store.Run, error) {
	def, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !def.Enabled {
		return nil, &errors.ValidationError{
			Field:   "workflow",
			Message: "workflow is disabled",
		}
	}

	now := time.Now()
	run := &store.Run{
		ID:             uuid.NewString(),
		WorkflowID:     def.ID,
		OrganizationID: def.OrganizationID,
		Status:         workflow.RunStatusPending,
		TriggerSource:  triggerSource,
		ActorID:        actorID,
		TriggerPayload: payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	// The run owns its context from here: the caller's request context
	// may be gone long before the steps finish.
	go e.executeRun(context.Background(), def, run, actorID)

	return run, nil
}

// StartScheduledRun is the scheduler's entry point.
func (e *Engine) StartScheduledRun(ctx context.Context, workflowID string) (string, error) {
	run, err := e.StartRun(ctx, workflowID, "schedule", "", nil)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// executeRun drives one run to completion and persists the outcome.
func (e *Engine) executeRun(ctx context.Context, def *workflow.Definition, run *store.Run, actorID string) {
	logger := e.logger.With("run_id", run.ID, "workflow_id", def.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("run panicked", "panic", fmt.Sprint(r))
			run.Status = workflow.RunStatusFailed
			run.Error = fmt.Sprintf("internal error: %v", r)
			completed := time.Now()
			run.CompletedAt = &completed
			if err := e.store.UpdateRun(ctx, run); err != nil {
				logger.Error("persisting panicked run", "error", err)
			}
		}
	}()

	started := time.Now()
	run.Status = workflow.RunStatusRunning
	run.StartedAt = &started
	if err := e.store.UpdateRun(ctx, run); err != nil {
		logger.Error("marking run running", "error", err)
		return
	}

	runCtx := workflow.NewContext(def.OrganizationID, actorID, run.TriggerSource, run.TriggerPayload)
	results, status := e.executor.Run(ctx, def, runCtx)

	completed := time.Now()
	run.Status = status
	run.StepResults = results
	run.CompletedAt = &completed
	if status == workflow.RunStatusFailed {
		for _, r := range results {
			if r.Status == workflow.StepStatusFailed {
				run.Error = r.Error
				break
			}
		}
	}

	if err := e.store.UpdateRun(ctx, run); err != nil {
		logger.Error("persisting run outcome", "error", err)
		return
	}

	logger.Info("run finished",
		"status", string(status),
		"steps", len(results),
		"duration_ms", completed.Sub(started).Milliseconds())
}

// Dispatch implements workflow.Dispatcher: it binds the step's contract
// to the integration's credentials and platform adapter.
func (e *Engine) Dispatch(ctx context.Context, contract *workflow.ActionContract, params map[string]any) (*workflow.DispatchResult, error) {
	integration, err := e.store.GetIntegration(ctx, contract.IntegrationID)
	if err != nil {
		return nil, err
	}

	var credentials map[string]string
	if integration.CredentialsBlob != "" {
		credentials, err = e.vault.DecryptJSON(integration.CredentialsBlob)
		if err != nil {
			return nil, err
		}
	}

	platformAdapter, ok := e.adapters.Get(contract.Platform)
	if !ok {
		return nil, &errors.AdapterError{
			Platform: contract.Platform,
			Action:   contract.Key,
			Message:  "no adapter registered for platform",
		}
	}

	params = translateFilters(contract.Platform, params)

	result, err := platformAdapter.Do(ctx, &adapter.Request{
		Platform:    contract.Platform,
		Action:      contract.Key,
		Method:      contract.Method,
		Endpoint:    contract.Endpoint,
		Params:      params,
		Credentials: credentials,
	})
	if err != nil {
		return nil, err
	}

	return &workflow.DispatchResult{
		Success:    result.Success,
		Data:       result.Data,
		Error:      result.Error,
		StatusCode: result.StatusCode,
	}, nil
}

// translateFilters rewrites a structured "filters" clause list into the
// platform's native query syntax: an Airtable filterByFormula
// expression, or field[operator]=value parameters elsewhere. An empty
// or fully unusable clause list means no filter, not an always-true
// one. Params without filters pass through untouched.
func translateFilters(platform string, params map[string]any) map[string]any {
	raw, ok := params["filters"]
	if !ok {
		return params
	}
	clauses := query.ParseClauses(raw)

	out := make(map[string]any, len(params))
	for k, v := range params {
		if k == "filters" {
			continue
		}
		out[k] = v
	}

	switch platform {
	case catalog.PlatformAirtable:
		if formula, ok := query.AirtableFormula(clauses); ok {
			out["filterByFormula"] = formula
		}
	default:
		for k, v := range query.RESTParams(clauses) {
			out[k] = v
		}
	}
	return out
}

// validateWorkflow checks the definition for API-level problems.
func validateWorkflow(def *workflow.Definition) error {
	if def.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "name is required"}
	}
	if def.OrganizationID == "" {
		return &errors.ValidationError{Field: "organizationId", Message: "organization is required"}
	}

	switch def.TriggerType {
	case workflow.TriggerTypeWebhook, workflow.TriggerTypeSchedule, workflow.TriggerTypeManual:
	default:
		return &errors.ValidationError{
			Field:      "triggerType",
			Message:    fmt.Sprintf("unknown trigger type %q", def.TriggerType),
			Suggestion: "use webhook, schedule, or manual",
		}
	}

	for i, step := range def.Steps {
		if step.Type == "" {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("steps[%d].type", i),
				Message: "step type is required",
			}
		}
		if step.IntegrationID == "" {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("steps[%d].integrationId", i),
				Message: "step integration is required",
			}
		}
		switch step.OnFailure {
		case "", workflow.OnFailureStop, workflow.OnFailureContinue:
		default:
			return &errors.ValidationError{
				Field:      fmt.Sprintf("steps[%d].onFailure", i),
				Message:    fmt.Sprintf("unknown policy %q", step.OnFailure),
				Suggestion: "use stop or continue",
			}
		}
	}

	return nil
}
