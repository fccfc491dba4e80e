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

// Package workflow defines workflow definitions and the step executor
// for the automation engine.
package workflow

import "time"

// TriggerType identifies what class of event starts a workflow.
type TriggerType string

const (
	// TriggerTypeWebhook starts a workflow from an inbound platform event.
	TriggerTypeWebhook TriggerType = "webhook"
	// TriggerTypeSchedule starts a workflow from the scheduler.
	TriggerTypeSchedule TriggerType = "schedule"
	// TriggerTypeManual starts a workflow from an explicit API request.
	TriggerTypeManual TriggerType = "manual"
)

// OnFailure controls whether a run continues past a failed step.
type OnFailure string

const (
	// OnFailureStop halts the run at the first failure. This is the default.
	OnFailureStop OnFailure = "stop"
	// OnFailureContinue records the failure and proceeds to the next step.
	OnFailureContinue OnFailure = "continue"
)

// Step is a single action invocation inside a workflow definition.
type Step struct {
	// Type is the action key resolved against the capability catalog,
	// e.g. "create_contact" or "list_records".
	Type string `json:"type" yaml:"type"`

	// Name is an optional human-readable label for run output.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// IntegrationID names the connected integration the action runs against.
	IntegrationID string `json:"integrationId" yaml:"integrationId"`

	// Config holds the action parameters. String values may contain
	// template references like {{stepOutputs.0.customerId}} which are
	// resolved against the run context before dispatch.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// Required marks the step as load-bearing for the run outcome:
	// if a required step fails the run is failed even when the step's
	// continuation policy lets later steps execute.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// OnFailure is the continuation policy. Empty means OnFailureStop.
	OnFailure OnFailure `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`

	// Condition is an optional expression evaluated against the run
	// context. When it evaluates to false the step is skipped.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Definition is a complete workflow: a trigger plus an ordered step list.
type Definition struct {
	ID             string         `json:"id" yaml:"id"`
	OrganizationID string         `json:"organizationId" yaml:"organizationId"`
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	TriggerType    TriggerType    `json:"triggerType" yaml:"triggerType"`
	TriggerConfig  map[string]any `json:"triggerConfig,omitempty" yaml:"triggerConfig,omitempty"`
	Steps          []Step         `json:"steps" yaml:"steps"`
	OwnerID        string         `json:"ownerId,omitempty" yaml:"ownerId,omitempty"`
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	CreatedAt      time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// StepStatus represents the execution status of a workflow step.
type StepStatus string

const (
	// StepStatusSucceeded indicates the step completed successfully.
	StepStatusSucceeded StepStatus = "succeeded"
	// StepStatusFailed indicates the step failed.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates the step was skipped by its condition
	// or never reached because an earlier failure halted the run.
	StepStatusSkipped StepStatus = "skipped"
)

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	// RunStatusPending means the run is recorded but execution has not started.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning means steps are executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded means every executed step succeeded.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed means the run halted on a failure or a required step failed.
	RunStatusFailed RunStatus = "failed"
	// RunStatusPartial means non-required steps failed but the run ran to completion.
	RunStatusPartial RunStatus = "partial"
)

// Error kinds recorded on failed step results. These distinguish
// definition problems from downstream platform failures.
const (
	// ErrorKindUnknownAction means the step type has no catalog entry.
	ErrorKindUnknownAction = "unknown_action"
	// ErrorKindInvalidParameters means required fields were missing or
	// template references did not resolve.
	ErrorKindInvalidParameters = "invalid_parameters"
	// ErrorKindAdapterFailure means the platform call itself failed.
	ErrorKindAdapterFailure = "adapter_failure"
	// ErrorKindConditionFailure means the step condition could not be evaluated.
	ErrorKindConditionFailure = "condition_failure"
)

// StepResult records the outcome of one step within a run.
type StepResult struct {
	StepIndex   int        `json:"stepIndex"`
	Name        string     `json:"name,omitempty"`
	Type        string     `json:"type"`
	Status      StepStatus `json:"status"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	StatusCode  int        `json:"statusCode,omitempty"`
	DurationMs  int64      `json:"durationMs"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt time.Time  `json:"completedAt"`
}
