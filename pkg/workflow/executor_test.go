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

package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

// fakeResolver serves contracts from a static key set.
type fakeResolver struct {
	contracts map[string]*ActionContract
}

func (r *fakeResolver) ResolveAction(_ context.Context, integrationID, key string) (*ActionContract, error) {
	c, ok := r.contracts[key]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "action", ID: key}
	}
	out := *c
	out.IntegrationID = integrationID
	return &out, nil
}

// fakeDispatcher records calls and replies from a per-key script.
type fakeDispatcher struct {
	calls   []string
	params  []map[string]any
	results map[string]*DispatchResult
	errs    map[string]error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, contract *ActionContract, params map[string]any) (*DispatchResult, error) {
	d.calls = append(d.calls, contract.Key)
	d.params = append(d.params, params)
	if err, ok := d.errs[contract.Key]; ok {
		return nil, err
	}
	if res, ok := d.results[contract.Key]; ok {
		return res, nil
	}
	return &DispatchResult{Success: true, Data: map[string]any{"ok": true}, StatusCode: 200}, nil
}

func newHarness() (*fakeResolver, *fakeDispatcher, *Executor) {
	resolver := &fakeResolver{contracts: map[string]*ActionContract{
		"create_contact": {Key: "create_contact", Platform: "highlevel", RequiredFields: []string{"email"}},
		"send_invoice":   {Key: "send_invoice", Platform: "highlevel", RequiredFields: []string{"contactId", "amount"}},
		"create_record":  {Key: "create_record", Platform: "airtable"},
		"list_records":   {Key: "list_records", Platform: "airtable"},
	}}
	dispatcher := &fakeDispatcher{
		results: map[string]*DispatchResult{},
		errs:    map[string]error{},
	}
	return resolver, dispatcher, NewExecutor(resolver, dispatcher, nil)
}

func defWith(steps ...Step) *Definition {
	return &Definition{ID: "wf-1", OrganizationID: "org-1", Name: "test", Steps: steps}
}

func TestRun_SequentialOrderAndOutputFlow(t *testing.T) {
	_, dispatcher, exec := newHarness()
	dispatcher.results["create_contact"] = &DispatchResult{
		Success: true, Data: map[string]any{"contactId": "con_1"}, StatusCode: 200,
	}

	def := defWith(
		Step{Type: "create_contact", Config: map[string]any{"email": "{{trigger.email}}"}},
		Step{Type: "send_invoice", Config: map[string]any{
			"contactId": "{{stepOutputs.0.contactId}}",
			"amount":    float64(99),
		}},
	)
	runCtx := NewContext("org-1", "", "manual", map[string]any{"email": "jo@example.com"})

	results, status := exec.Run(context.Background(), def, runCtx)

	assert.Equal(t, RunStatusSucceeded, status)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"create_contact", "send_invoice"}, dispatcher.calls)

	// Step 1 saw step 0's output.
	assert.Equal(t, "con_1", dispatcher.params[1]["contactId"])
	assert.Equal(t, StepStatusSucceeded, results[0].Status)
	assert.Equal(t, StepStatusSucceeded, results[1].Status)
}

func TestRun_UnknownActionHalts(t *testing.T) {
	_, dispatcher, exec := newHarness()

	def := defWith(
		Step{Type: "no_such_action", OnFailure: OnFailureContinue},
		Step{Type: "create_contact", Config: map[string]any{"email": "a@b.c"}},
	)

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusFailed, status)
	require.Len(t, results, 2)
	assert.Equal(t, StepStatusFailed, results[0].Status)
	assert.Equal(t, ErrorKindUnknownAction, results[0].ErrorKind)
	// The halt overrides the continue policy; step 1 never dispatched.
	assert.Equal(t, StepStatusSkipped, results[1].Status)
	assert.Empty(t, dispatcher.calls)
}

func TestRun_StopOnFailureIsDefault(t *testing.T) {
	_, dispatcher, exec := newHarness()
	dispatcher.errs["create_contact"] = fmt.Errorf("connection refused")

	def := defWith(
		Step{Type: "create_contact", Config: map[string]any{"email": "a@b.c"}},
		Step{Type: "create_record"},
		Step{Type: "list_records"},
	)

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusFailed, status)
	assert.Equal(t, StepStatusFailed, results[0].Status)
	assert.Equal(t, ErrorKindAdapterFailure, results[0].ErrorKind)
	assert.Equal(t, StepStatusSkipped, results[1].Status)
	assert.Equal(t, StepStatusSkipped, results[2].Status)
	assert.Equal(t, []string{"create_contact"}, dispatcher.calls)
}

func TestRun_ContinueOnFailureYieldsPartial(t *testing.T) {
	_, dispatcher, exec := newHarness()
	dispatcher.results["create_record"] = &DispatchResult{
		Success: false, Error: "UNPROCESSABLE_ENTITY", StatusCode: 422,
	}

	def := defWith(
		Step{Type: "create_contact", Config: map[string]any{"email": "a@b.c"}},
		Step{Type: "create_record", OnFailure: OnFailureContinue},
		Step{Type: "list_records"},
	)

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusPartial, status)
	assert.Equal(t, StepStatusFailed, results[1].Status)
	assert.Equal(t, 422, results[1].StatusCode)
	assert.Equal(t, StepStatusSucceeded, results[2].Status)
	assert.Equal(t, []string{"create_contact", "create_record", "list_records"}, dispatcher.calls)
}

func TestRun_RequiredStepFailureForcesFailed(t *testing.T) {
	_, dispatcher, exec := newHarness()
	dispatcher.results["create_record"] = &DispatchResult{Success: false, Error: "boom", StatusCode: 500}

	def := defWith(
		Step{Type: "create_record", Required: true, OnFailure: OnFailureContinue},
		Step{Type: "list_records"},
	)

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	// The run continued, but a required step failed.
	assert.Equal(t, RunStatusFailed, status)
	assert.Equal(t, StepStatusSucceeded, results[1].Status)
}

func TestRun_MissingRequiredParameter(t *testing.T) {
	_, dispatcher, exec := newHarness()

	def := defWith(Step{Type: "create_contact", Config: map[string]any{"name": "Jo"}})

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusFailed, status)
	assert.Equal(t, ErrorKindInvalidParameters, results[0].ErrorKind)
	assert.Contains(t, results[0].Error, "email")
	assert.Empty(t, dispatcher.calls)
}

func TestRun_EmptyStringSatisfiesRequiredParameter(t *testing.T) {
	_, dispatcher, exec := newHarness()

	// Presence is what's checked; an empty string is a value the caller
	// chose to send.
	def := defWith(Step{Type: "create_contact", Config: map[string]any{"email": ""}})

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusSucceeded, status)
	assert.Equal(t, StepStatusSucceeded, results[0].Status)
	require.Equal(t, []string{"create_contact"}, dispatcher.calls)
	assert.Equal(t, "", dispatcher.params[0]["email"])
}

func TestRun_NilRequiredParameterIsMissing(t *testing.T) {
	_, dispatcher, exec := newHarness()

	def := defWith(Step{Type: "create_contact", Config: map[string]any{"email": nil}})

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusFailed, status)
	assert.Equal(t, ErrorKindInvalidParameters, results[0].ErrorKind)
	assert.Empty(t, dispatcher.calls)
}

func TestRun_UnresolvedReferenceFailsStep(t *testing.T) {
	_, dispatcher, exec := newHarness()

	def := defWith(Step{
		Type:   "create_contact",
		Config: map[string]any{"email": "{{stepOutputs.3.email}}"},
	})

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusFailed, status)
	assert.Equal(t, ErrorKindInvalidParameters, results[0].ErrorKind)
	assert.Contains(t, results[0].Error, "stepOutputs.3.email")
	assert.Empty(t, dispatcher.calls)
}

func TestRun_ConditionSkipsStep(t *testing.T) {
	_, dispatcher, exec := newHarness()

	def := defWith(
		Step{
			Type:      "create_record",
			Condition: `trigger.amount > 1000`,
		},
		Step{Type: "list_records"},
	)
	runCtx := NewContext("org-1", "", "webhook", map[string]any{"amount": 500})

	results, status := exec.Run(context.Background(), def, runCtx)

	assert.Equal(t, RunStatusSucceeded, status)
	assert.Equal(t, StepStatusSkipped, results[0].Status)
	assert.Equal(t, StepStatusSucceeded, results[1].Status)
	assert.Equal(t, []string{"list_records"}, dispatcher.calls)
}

func TestRun_ConditionTrueExecutesStep(t *testing.T) {
	_, dispatcher, exec := newHarness()

	def := defWith(Step{
		Type:      "create_record",
		Condition: `trigger.amount > 1000`,
	})
	runCtx := NewContext("org-1", "", "webhook", map[string]any{"amount": 5000})

	_, status := exec.Run(context.Background(), def, runCtx)

	assert.Equal(t, RunStatusSucceeded, status)
	assert.Equal(t, []string{"create_record"}, dispatcher.calls)
}

func TestRun_InvalidConditionFails(t *testing.T) {
	_, _, exec := newHarness()

	def := defWith(Step{Type: "create_record", Condition: `trigger.amount +`})

	results, status := exec.Run(context.Background(), def, NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusFailed, status)
	assert.Equal(t, ErrorKindConditionFailure, results[0].ErrorKind)
}

func TestRun_EmptyDefinitionSucceeds(t *testing.T) {
	_, _, exec := newHarness()

	results, status := exec.Run(context.Background(), defWith(), NewContext("org-1", "", "manual", nil))

	assert.Equal(t, RunStatusSucceeded, status)
	assert.Empty(t, results)
}
