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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db"), WAL: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createIntegration(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateIntegration(context.Background(), &store.Integration{
		ID:             id,
		OrganizationID: "org-1",
		PlatformType:   "airtable",
		Name:           "Test base",
		Status:         store.IntegrationStatusDisconnected,
	}))
}

func TestIntegrationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	testedAt := time.Now().UTC().Truncate(time.Second)
	in := &store.Integration{
		ID:              "int-1",
		OrganizationID:  "org-1",
		PlatformType:    "highlevel",
		Name:            "Main CRM",
		CredentialsBlob: "abcd:ef01",
		Status:          store.IntegrationStatusConnected,
		Enabled:         true,
		Metadata:        map[string]any{"location_id": "loc-1"},
		LastTestedAt:    &testedAt,
	}
	require.NoError(t, s.CreateIntegration(ctx, in))

	got, err := s.GetIntegration(ctx, "int-1")
	require.NoError(t, err)
	assert.Equal(t, "highlevel", got.PlatformType)
	assert.Equal(t, "abcd:ef01", got.CredentialsBlob)
	assert.True(t, got.Enabled)
	assert.Equal(t, "loc-1", got.Metadata["location_id"])
	require.NotNil(t, got.LastTestedAt)
	assert.True(t, got.LastTestedAt.Equal(testedAt))

	got.Status = store.IntegrationStatusError
	got.LastError = "401 from platform"
	require.NoError(t, s.UpdateIntegration(ctx, got))

	again, err := s.GetIntegration(ctx, "int-1")
	require.NoError(t, err)
	assert.Equal(t, "401 from platform", again.LastError)
}

func TestGetIntegration_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetIntegration(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteIntegration_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createIntegration(t, s, "int-1")
	require.NoError(t, s.UpsertTriggerDefinition(ctx, &store.TriggerDefinition{
		ID: "td-1", IntegrationID: "int-1", Key: "record.created",
	}))
	require.NoError(t, s.CreateIntegrationTrigger(ctx, &store.IntegrationTrigger{
		ID: "it-1", IntegrationID: "int-1", TriggerKey: "record.created",
		WebhookPath: "/webhooks/airtable/int-1/record.created",
	}))

	require.NoError(t, s.DeleteIntegration(ctx, "int-1"))

	defs, err := s.ListTriggerDefinitions(ctx, "int-1")
	require.NoError(t, err)
	assert.Empty(t, defs)

	triggers, err := s.ListIntegrationTriggers(ctx, "int-1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestUpsertTriggerDefinition_PreservesConfigured(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createIntegration(t, s, "int-1")
	require.NoError(t, s.UpsertTriggerDefinition(ctx, &store.TriggerDefinition{
		ID:            "td-1",
		IntegrationID: "int-1",
		Key:           "record.created",
		Name:          "Record Created",
		PayloadSchema: map[string]any{"type": "object"},
		PayloadSample: map[string]any{"recordId": "rec123"},
	}))
	require.NoError(t, s.SetTriggerConfigured(ctx, "int-1", "record.created", true))

	require.NoError(t, s.UpsertTriggerDefinition(ctx, &store.TriggerDefinition{
		ID:            "td-new",
		IntegrationID: "int-1",
		Key:           "record.created",
		Name:          "Record Created v2",
	}))

	defs, err := s.ListTriggerDefinitions(ctx, "int-1")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "td-1", defs[0].ID)
	assert.Equal(t, "Record Created v2", defs[0].Name)
	assert.True(t, defs[0].IsConfigured)
}

func TestActionDefinitionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createIntegration(t, s, "int-1")
	require.NoError(t, s.UpsertActionDefinition(ctx, &store.ActionDefinition{
		ID:             "ad-1",
		IntegrationID:  "int-1",
		Key:            "update_record",
		Method:         "PATCH",
		Endpoint:       "/v0/{baseId}/{tableId}/{recordId}",
		RequiredFields: []string{"baseId", "tableId", "recordId", "fields"},
		Idempotent:     true,
		ResourceType:   "record",
	}))

	def, err := s.GetActionDefinition(ctx, "int-1", "update_record")
	require.NoError(t, err)
	assert.Equal(t, "PATCH", def.Method)
	assert.Equal(t, []string{"baseId", "tableId", "recordId", "fields"}, def.RequiredFields)
	assert.True(t, def.Idempotent)
	assert.Equal(t, "record", def.ResourceType)

	_, err = s.GetActionDefinition(ctx, "int-1", "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestIntegrationTrigger_UniquePerKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createIntegration(t, s, "int-1")
	require.NoError(t, s.CreateIntegrationTrigger(ctx, &store.IntegrationTrigger{
		ID: "it-1", IntegrationID: "int-1", TriggerKey: "record.created",
		WebhookPath: "/webhooks/airtable/int-1/record.created", Active: true,
	}))

	err := s.CreateIntegrationTrigger(ctx, &store.IntegrationTrigger{
		ID: "it-2", IntegrationID: "int-1", TriggerKey: "record.created",
		WebhookPath: "/webhooks/airtable/int-1/record.created",
	})
	assert.Error(t, err, "one registration per (integration, trigger key)")

	got, err := s.GetIntegrationTrigger(ctx, "int-1", "record.created")
	require.NoError(t, err)
	assert.Equal(t, "it-1", got.ID)
	assert.True(t, got.Active)
}

func TestWorkflowRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	def := &workflow.Definition{
		ID:             "wf-1",
		OrganizationID: "org-1",
		Name:           "Call transcript to CRM",
		TriggerType:    workflow.TriggerTypeWebhook,
		TriggerConfig:  map[string]any{"integrationId": "int-vapi", "triggerKey": "call.completed"},
		Steps: []workflow.Step{
			{Type: "get_transcript", IntegrationID: "int-vapi", Config: map[string]any{"callId": "{{trigger.callId}}"}},
			{Type: "update_opportunity", IntegrationID: "int-hl", Required: true, OnFailure: workflow.OnFailureContinue},
		},
		Enabled: true,
	}
	require.NoError(t, s.CreateWorkflow(ctx, def))

	got, err := s.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "{{trigger.callId}}", got.Steps[0].Config["callId"])
	assert.True(t, got.Steps[1].Required)
	assert.Equal(t, workflow.OnFailureContinue, got.Steps[1].OnFailure)
	assert.Equal(t, "int-vapi", got.TriggerConfig["integrationId"])

	got.Enabled = false
	require.NoError(t, s.UpdateWorkflow(ctx, got))

	list, err := s.ListWorkflows(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled)
}

func TestRunRoundTripAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	run := &store.Run{
		ID:             "run-1",
		WorkflowID:     "wf-1",
		OrganizationID: "org-1",
		Status:         workflow.RunStatusRunning,
		TriggerSource:  "webhook",
		ActorID:        "user-7",
		TriggerPayload: map[string]any{"callId": "call-9"},
		StartedAt:      &started,
	}
	require.NoError(t, s.CreateRun(ctx, run))

	run.Status = workflow.RunStatusPartial
	run.StepResults = []workflow.StepResult{
		{StepIndex: 0, Type: "get_transcript", Status: workflow.StepStatusSucceeded},
		{StepIndex: 1, Type: "update_opportunity", Status: workflow.StepStatusFailed, ErrorKind: workflow.ErrorKindAdapterFailure},
	}
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunStatusPartial, got.Status)
	assert.Equal(t, "user-7", got.ActorID)
	require.Len(t, got.StepResults, 2)
	assert.Equal(t, workflow.ErrorKindAdapterFailure, got.StepResults[1].ErrorKind)
	assert.Equal(t, "call-9", got.TriggerPayload["callId"])

	partial, err := s.ListRuns(ctx, store.RunFilter{Status: workflow.RunStatusPartial})
	require.NoError(t, err)
	require.Len(t, partial, 1)

	none, err := s.ListRuns(ctx, store.RunFilter{WorkflowID: "wf-other"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestScheduleUpsertAndFire(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-1", WorkflowID: "wf-1", Frequency: "weekly", CronExpr: "0 0 * * 0", Active: true,
	}))
	require.NoError(t, s.MarkScheduleFired(ctx, "wf-1", time.Now()))

	// Frequency change keeps identity and fire history.
	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-2", WorkflowID: "wf-1", Frequency: "daily", CronExpr: "0 0 * * *",
		Timezone: "Europe/London", Active: true,
	}))

	got, err := s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "sch-1", got.ID)
	assert.Equal(t, "0 0 * * *", got.CronExpr)
	assert.Equal(t, "Europe/London", got.Timezone)
	assert.NotNil(t, got.LastFiredAt)

	require.NoError(t, s.SetScheduleActive(ctx, "wf-1", false))
	active, err := s.ListActiveSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.DeleteSchedule(ctx, "wf-1"))
	_, err = s.GetSchedule(ctx, "wf-1")
	assert.True(t, errors.IsNotFound(err))
}
