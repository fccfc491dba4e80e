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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

func TestIntegrationLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	in := &store.Integration{
		ID:             "int-1",
		OrganizationID: "org-1",
		PlatformType:   "highlevel",
		Name:           "Main CRM",
		Status:         store.IntegrationStatusDisconnected,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.CreateIntegration(ctx, in))

	got, err := s.GetIntegration(ctx, "int-1")
	require.NoError(t, err)
	assert.Equal(t, "Main CRM", got.Name)

	// Stored state is isolated from caller mutations.
	got.Name = "mutated"
	again, err := s.GetIntegration(ctx, "int-1")
	require.NoError(t, err)
	assert.Equal(t, "Main CRM", again.Name)

	got.Name = "Renamed"
	got.Status = store.IntegrationStatusConnected
	require.NoError(t, s.UpdateIntegration(ctx, got))

	list, err := s.ListIntegrations(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, store.IntegrationStatusConnected, list[0].Status)

	require.NoError(t, s.DeleteIntegration(ctx, "int-1"))
	_, err = s.GetIntegration(ctx, "int-1")
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteIntegration_CascadesCatalog(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateIntegration(ctx, &store.Integration{ID: "int-1", OrganizationID: "org-1"}))
	require.NoError(t, s.UpsertTriggerDefinition(ctx, &store.TriggerDefinition{
		ID: "td-1", IntegrationID: "int-1", Key: "invoice.paid",
	}))
	require.NoError(t, s.UpsertActionDefinition(ctx, &store.ActionDefinition{
		ID: "ad-1", IntegrationID: "int-1", Key: "create_contact",
	}))
	require.NoError(t, s.CreateIntegrationTrigger(ctx, &store.IntegrationTrigger{
		ID: "it-1", IntegrationID: "int-1", TriggerKey: "invoice.paid",
	}))

	require.NoError(t, s.DeleteIntegration(ctx, "int-1"))

	defs, err := s.ListTriggerDefinitions(ctx, "int-1")
	require.NoError(t, err)
	assert.Empty(t, defs)

	actions, err := s.ListActionDefinitions(ctx, "int-1")
	require.NoError(t, err)
	assert.Empty(t, actions)

	triggers, err := s.ListIntegrationTriggers(ctx, "int-1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestUpsertTriggerDefinition_PreservesConfigured(t *testing.T) {
	s := New()
	ctx := context.Background()

	def := &store.TriggerDefinition{
		ID:            "td-1",
		IntegrationID: "int-1",
		Key:           "invoice.paid",
		Name:          "Invoice Paid",
	}
	require.NoError(t, s.UpsertTriggerDefinition(ctx, def))
	require.NoError(t, s.SetTriggerConfigured(ctx, "int-1", "invoice.paid", true))

	// Re-import with refreshed text must not clobber the flag.
	require.NoError(t, s.UpsertTriggerDefinition(ctx, &store.TriggerDefinition{
		ID:            "td-other",
		IntegrationID: "int-1",
		Key:           "invoice.paid",
		Name:          "Invoice Paid (updated)",
	}))

	defs, err := s.ListTriggerDefinitions(ctx, "int-1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Invoice Paid (updated)", defs[0].Name)
	assert.True(t, defs[0].IsConfigured)
	assert.Equal(t, "td-1", defs[0].ID, "upsert keeps the original row identity")
}

func TestGetActionDefinition_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetActionDefinition(context.Background(), "int-1", "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestIntegrationTrigger_DuplicateRejected(t *testing.T) {
	s := New()
	ctx := context.Background()

	tr := &store.IntegrationTrigger{ID: "it-1", IntegrationID: "int-1", TriggerKey: "call.completed"}
	require.NoError(t, s.CreateIntegrationTrigger(ctx, tr))

	dup := &store.IntegrationTrigger{ID: "it-2", IntegrationID: "int-1", TriggerKey: "call.completed"}
	assert.Error(t, s.CreateIntegrationTrigger(ctx, dup))
}

func TestWorkflowLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	def := &workflow.Definition{
		ID:             "wf-1",
		OrganizationID: "org-1",
		Name:           "Invoice chaser",
		TriggerType:    workflow.TriggerTypeSchedule,
		Steps: []workflow.Step{
			{Type: "list_records", IntegrationID: "int-air"},
		},
		Enabled: true,
	}
	require.NoError(t, s.CreateWorkflow(ctx, def))

	got, err := s.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "list_records", got.Steps[0].Type)

	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-1", WorkflowID: "wf-1", CronExpr: "0 0 * * *", Active: true,
	}))

	require.NoError(t, s.DeleteWorkflow(ctx, "wf-1"))
	_, err = s.GetSchedule(ctx, "wf-1")
	assert.True(t, errors.IsNotFound(err), "deleting a workflow removes its schedule")
}

func TestListRuns_FilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Now()
	for i, status := range []workflow.RunStatus{
		workflow.RunStatusSucceeded,
		workflow.RunStatusFailed,
		workflow.RunStatusSucceeded,
	} {
		require.NoError(t, s.CreateRun(ctx, &store.Run{
			ID:             string(rune('a' + i)),
			WorkflowID:     "wf-1",
			OrganizationID: "org-1",
			Status:         status,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(ctx, store.RunFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")

	failed, err := s.ListRuns(ctx, store.RunFilter{Status: workflow.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)

	limited, err := s.ListRuns(ctx, store.RunFilter{WorkflowID: "wf-1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b", limited[0].ID)
}

func TestScheduleLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-1", WorkflowID: "wf-1", Frequency: "daily", CronExpr: "0 0 * * *", Active: true,
	}))

	firedAt := time.Now()
	require.NoError(t, s.MarkScheduleFired(ctx, "wf-1", firedAt))

	// Upsert keeps identity and fire history.
	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-2", WorkflowID: "wf-1", Frequency: "hourly", CronExpr: "0 * * * *", Active: true,
	}))

	got, err := s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "sch-1", got.ID)
	assert.Equal(t, "hourly", got.Frequency)
	require.NotNil(t, got.LastFiredAt)

	require.NoError(t, s.SetScheduleActive(ctx, "wf-1", false))
	active, err := s.ListActiveSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
