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

// Package memory provides an in-memory store for tests and development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store is a mutex-protected in-memory implementation of store.Store.
// All entities are copied on the way in and out, so callers can mutate
// what they hold without corrupting stored state.
type Store struct {
	mu sync.RWMutex

	integrations map[string]*store.Integration
	triggerDefs  map[string]*store.TriggerDefinition // keyed integrationID + "/" + key
	actionDefs   map[string]*store.ActionDefinition  // keyed integrationID + "/" + key
	triggers     map[string]*store.IntegrationTrigger
	workflows    map[string]*workflow.Definition
	runs         map[string]*store.Run
	schedules    map[string]*store.Schedule // keyed by workflow ID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		integrations: make(map[string]*store.Integration),
		triggerDefs:  make(map[string]*store.TriggerDefinition),
		actionDefs:   make(map[string]*store.ActionDefinition),
		triggers:     make(map[string]*store.IntegrationTrigger),
		workflows:    make(map[string]*workflow.Definition),
		runs:         make(map[string]*store.Run),
		schedules:    make(map[string]*store.Schedule),
	}
}

func defKey(integrationID, key string) string {
	return integrationID + "/" + key
}

// CreateIntegration stores a new integration.
func (s *Store) CreateIntegration(_ context.Context, in *store.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.integrations[in.ID]; exists {
		return &errors.ValidationError{Field: "id", Message: "integration already exists"}
	}

	cp := *in
	s.integrations[in.ID] = &cp
	return nil
}

// GetIntegration retrieves an integration by ID.
func (s *Store) GetIntegration(_ context.Context, id string) (*store.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.integrations[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "integration", ID: id}
	}
	cp := *in
	return &cp, nil
}

// UpdateIntegration replaces a stored integration.
func (s *Store) UpdateIntegration(_ context.Context, in *store.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.integrations[in.ID]; !ok {
		return &errors.NotFoundError{Resource: "integration", ID: in.ID}
	}
	cp := *in
	s.integrations[in.ID] = &cp
	return nil
}

// DeleteIntegration removes an integration and everything hanging off it.
func (s *Store) DeleteIntegration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.integrations[id]; !ok {
		return &errors.NotFoundError{Resource: "integration", ID: id}
	}
	delete(s.integrations, id)

	prefix := id + "/"
	for k := range s.triggerDefs {
		if strings.HasPrefix(k, prefix) {
			delete(s.triggerDefs, k)
		}
	}
	for k := range s.actionDefs {
		if strings.HasPrefix(k, prefix) {
			delete(s.actionDefs, k)
		}
	}
	for k, tr := range s.triggers {
		if tr.IntegrationID == id {
			delete(s.triggers, k)
		}
	}
	return nil
}

// ListIntegrations returns the organization's integrations sorted by name.
func (s *Store) ListIntegrations(_ context.Context, organizationID string) ([]*store.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Integration
	for _, in := range s.integrations {
		if in.OrganizationID == organizationID {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpsertTriggerDefinition inserts or refreshes a trigger definition.
// Refreshes keep IsConfigured and CreatedAt from the stored row.
func (s *Store) UpsertTriggerDefinition(_ context.Context, def *store.TriggerDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := defKey(def.IntegrationID, def.Key)
	cp := *def
	if existing, ok := s.triggerDefs[key]; ok {
		cp.ID = existing.ID
		cp.IsConfigured = existing.IsConfigured
		cp.CreatedAt = existing.CreatedAt
	}
	s.triggerDefs[key] = &cp
	return nil
}

// UpsertActionDefinition inserts or refreshes an action definition.
func (s *Store) UpsertActionDefinition(_ context.Context, def *store.ActionDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := defKey(def.IntegrationID, def.Key)
	cp := *def
	if existing, ok := s.actionDefs[key]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	s.actionDefs[key] = &cp
	return nil
}

// ListTriggerDefinitions returns an integration's trigger catalog sorted by key.
func (s *Store) ListTriggerDefinitions(_ context.Context, integrationID string) ([]*store.TriggerDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.TriggerDefinition
	for _, def := range s.triggerDefs {
		if def.IntegrationID == integrationID {
			cp := *def
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ListActionDefinitions returns an integration's action catalog sorted by key.
func (s *Store) ListActionDefinitions(_ context.Context, integrationID string) ([]*store.ActionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.ActionDefinition
	for _, def := range s.actionDefs {
		if def.IntegrationID == integrationID {
			cp := *def
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// GetActionDefinition retrieves one action definition by key.
func (s *Store) GetActionDefinition(_ context.Context, integrationID, key string) (*store.ActionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.actionDefs[defKey(integrationID, key)]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "action", ID: key}
	}
	cp := *def
	return &cp, nil
}

// SetTriggerConfigured flips the configured flag on a trigger definition.
func (s *Store) SetTriggerConfigured(_ context.Context, integrationID, key string, configured bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.triggerDefs[defKey(integrationID, key)]
	if !ok {
		return &errors.NotFoundError{Resource: "trigger", ID: key}
	}
	def.IsConfigured = configured
	def.UpdatedAt = time.Now()
	return nil
}

// CreateIntegrationTrigger stores a live trigger registration.
func (s *Store) CreateIntegrationTrigger(_ context.Context, tr *store.IntegrationTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.triggers {
		if existing.IntegrationID == tr.IntegrationID && existing.TriggerKey == tr.TriggerKey {
			return &errors.ValidationError{Field: "triggerKey", Message: "trigger already registered"}
		}
	}

	cp := *tr
	s.triggers[tr.ID] = &cp
	return nil
}

// GetIntegrationTrigger retrieves a registration by integration and key.
func (s *Store) GetIntegrationTrigger(_ context.Context, integrationID, triggerKey string) (*store.IntegrationTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tr := range s.triggers {
		if tr.IntegrationID == integrationID && tr.TriggerKey == triggerKey {
			cp := *tr
			return &cp, nil
		}
	}
	return nil, &errors.NotFoundError{Resource: "integration trigger", ID: integrationID + "/" + triggerKey}
}

// ListIntegrationTriggers returns an integration's registrations sorted by key.
func (s *Store) ListIntegrationTriggers(_ context.Context, integrationID string) ([]*store.IntegrationTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.IntegrationTrigger
	for _, tr := range s.triggers {
		if tr.IntegrationID == integrationID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerKey < out[j].TriggerKey })
	return out, nil
}

// DeleteIntegrationTrigger removes a registration by ID.
func (s *Store) DeleteIntegrationTrigger(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.triggers[id]; !ok {
		return &errors.NotFoundError{Resource: "integration trigger", ID: id}
	}
	delete(s.triggers, id)
	return nil
}

// CreateWorkflow stores a new workflow definition.
func (s *Store) CreateWorkflow(_ context.Context, def *workflow.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[def.ID]; exists {
		return &errors.ValidationError{Field: "id", Message: "workflow already exists"}
	}
	cp := *def
	s.workflows[def.ID] = &cp
	return nil
}

// GetWorkflow retrieves a workflow definition by ID.
func (s *Store) GetWorkflow(_ context.Context, id string) (*workflow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.workflows[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	cp := *def
	return &cp, nil
}

// UpdateWorkflow replaces a stored workflow definition.
func (s *Store) UpdateWorkflow(_ context.Context, def *workflow.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[def.ID]; !ok {
		return &errors.NotFoundError{Resource: "workflow", ID: def.ID}
	}
	cp := *def
	s.workflows[def.ID] = &cp
	return nil
}

// DeleteWorkflow removes a workflow and its schedule.
func (s *Store) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	delete(s.workflows, id)
	delete(s.schedules, id)
	return nil
}

// ListWorkflows returns the organization's workflows sorted by name.
func (s *Store) ListWorkflows(_ context.Context, organizationID string) ([]*workflow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*workflow.Definition
	for _, def := range s.workflows {
		if def.OrganizationID == organizationID {
			cp := *def
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateRun stores a new run.
func (s *Store) CreateRun(_ context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return &errors.ValidationError{Field: "id", Message: "run already exists"}
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(_ context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	return copyRun(run), nil
}

// UpdateRun replaces a stored run.
func (s *Store) UpdateRun(_ context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return &errors.NotFoundError{Resource: "run", ID: run.ID}
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *Store) ListRuns(_ context.Context, filter store.RunFilter) ([]*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Run
	for _, run := range s.runs {
		if filter.WorkflowID != "" && run.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.OrganizationID != "" && run.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, copyRun(run))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpsertSchedule inserts or replaces the schedule for a workflow.
func (s *Store) UpsertSchedule(_ context.Context, sched *store.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sched
	if existing, ok := s.schedules[sched.WorkflowID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
		cp.LastFiredAt = existing.LastFiredAt
	}
	s.schedules[sched.WorkflowID] = &cp
	return nil
}

// GetSchedule retrieves the schedule for a workflow.
func (s *Store) GetSchedule(_ context.Context, workflowID string) (*store.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, ok := s.schedules[workflowID]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "schedule", ID: workflowID}
	}
	cp := *sched
	return &cp, nil
}

// ListActiveSchedules returns every active schedule.
func (s *Store) ListActiveSchedules(_ context.Context) ([]*store.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Schedule
	for _, sched := range s.schedules {
		if sched.Active {
			cp := *sched
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out, nil
}

// SetScheduleActive flips a schedule's active flag.
func (s *Store) SetScheduleActive(_ context.Context, workflowID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[workflowID]
	if !ok {
		return &errors.NotFoundError{Resource: "schedule", ID: workflowID}
	}
	sched.Active = active
	sched.UpdatedAt = time.Now()
	return nil
}

// MarkScheduleFired records the last fire time.
func (s *Store) MarkScheduleFired(_ context.Context, workflowID string, firedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[workflowID]
	if !ok {
		return &errors.NotFoundError{Resource: "schedule", ID: workflowID}
	}
	sched.LastFiredAt = &firedAt
	sched.UpdatedAt = time.Now()
	return nil
}

// DeleteSchedule removes the schedule for a workflow.
func (s *Store) DeleteSchedule(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[workflowID]; !ok {
		return &errors.NotFoundError{Resource: "schedule", ID: workflowID}
	}
	delete(s.schedules, workflowID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// copyRun clones a run including its step result slice.
func copyRun(run *store.Run) *store.Run {
	cp := *run
	if run.StepResults != nil {
		cp.StepResults = make([]workflow.StepResult, len(run.StepResults))
		copy(cp.StepResults, run.StepResults)
	}
	return &cp
}
