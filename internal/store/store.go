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

// Package store defines the persistence contracts for the automation
// engine. Implementations live in the memory and sqlite subpackages.
package store

import (
	"context"
	"time"

	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// Integration statuses. New integrations start disconnected and move
// to connected on a successful credential test.
const (
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusActive       = "active"
	IntegrationStatusConnected    = "connected"
	IntegrationStatusError        = "error"
)

// Integration is a tenant's connection to an external platform.
// Credentials are stored only in encrypted blob form.
type Integration struct {
	ID              string `json:"id"`
	OrganizationID  string `json:"organizationId"`
	PlatformType    string `json:"platformType"`
	Name            string `json:"name"`
	CredentialsBlob string `json:"-"`
	Status          string `json:"status"`
	Enabled         bool   `json:"enabled"`
	// Metadata holds platform-specific defaults, e.g. a location ID or
	// base ID the platform scopes its API calls to.
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastError    string         `json:"lastError,omitempty"`
	LastTestedAt *time.Time     `json:"lastTestedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TriggerDefinition is a catalog row: an event a platform can emit,
// materialized per integration.
type TriggerDefinition struct {
	ID            string `json:"id"`
	IntegrationID string `json:"integrationId"`
	Key           string `json:"key"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
	EventType     string `json:"eventType,omitempty"`
	// IsConfigured survives catalog re-imports: it reflects whether a
	// live IntegrationTrigger exists, not what the catalog says.
	IsConfigured  bool           `json:"isConfigured"`
	PayloadSchema map[string]any `json:"payloadSchema,omitempty"`
	PayloadSample map[string]any `json:"payloadSample,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ActionDefinition is a catalog row: an operation a platform accepts,
// materialized per integration.
type ActionDefinition struct {
	ID             string   `json:"id"`
	IntegrationID  string   `json:"integrationId"`
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Method         string   `json:"method"`
	Endpoint       string   `json:"endpoint"`
	RequiredFields []string `json:"requiredFields,omitempty"`
	OptionalFields []string `json:"optionalFields,omitempty"`
	// Idempotent marks actions safe to repeat on retry delivery.
	Idempotent   bool      `json:"idempotent"`
	ResourceType string    `json:"resourceType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IntegrationTrigger is a live trigger registration: an addressable
// webhook endpoint for one trigger definition on one integration.
type IntegrationTrigger struct {
	ID            string `json:"id"`
	IntegrationID string `json:"integrationId"`
	TriggerKey    string `json:"triggerKey"`
	// WebhookPath is the inbound path events arrive on, e.g.
	// /webhooks/highlevel/<integrationID>/invoice.paid.
	WebhookPath string `json:"webhookPath,omitempty"`
	// Secret is the shared HMAC secret for signature verification.
	Secret string `json:"-"`
	Active bool   `json:"active"`
	// Config holds per-instance trigger settings, e.g. polling filters.
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Run is one execution of a workflow.
type Run struct {
	ID             string                `json:"id"`
	WorkflowID     string                `json:"workflowId"`
	OrganizationID string                `json:"organizationId"`
	Status         workflow.RunStatus    `json:"status"`
	TriggerSource  string                `json:"triggerSource"`
	ActorID        string                `json:"actorId,omitempty"`
	TriggerPayload map[string]any        `json:"triggerPayload,omitempty"`
	StepResults    []workflow.StepResult `json:"stepResults,omitempty"`
	Error          string                `json:"error,omitempty"`
	StartedAt      *time.Time            `json:"startedAt,omitempty"`
	CompletedAt    *time.Time            `json:"completedAt,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Schedule is the scheduler's record for one schedule-triggered workflow.
type Schedule struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	Frequency  string `json:"frequency"`
	CronExpr   string `json:"cronExpr"`
	// Timezone is an IANA zone name; empty means UTC.
	Timezone    string     `json:"timezone,omitempty"`
	Active      bool       `json:"active"`
	LastFiredAt *time.Time `json:"lastFiredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	WorkflowID     string
	OrganizationID string
	Status         workflow.RunStatus
	Limit          int
	Offset         int
}

// IntegrationStore persists integrations.
type IntegrationStore interface {
	CreateIntegration(ctx context.Context, in *Integration) error
	GetIntegration(ctx context.Context, id string) (*Integration, error)
	UpdateIntegration(ctx context.Context, in *Integration) error
	// DeleteIntegration removes the integration along with its catalog
	// rows and trigger registrations.
	DeleteIntegration(ctx context.Context, id string) error
	ListIntegrations(ctx context.Context, organizationID string) ([]*Integration, error)
}

// CatalogStore persists imported trigger and action definitions.
type CatalogStore interface {
	// UpsertTriggerDefinition inserts or refreshes a definition keyed
	// by (integration, key). Refresh updates descriptive text but must
	// not clobber IsConfigured.
	UpsertTriggerDefinition(ctx context.Context, def *TriggerDefinition) error
	UpsertActionDefinition(ctx context.Context, def *ActionDefinition) error
	ListTriggerDefinitions(ctx context.Context, integrationID string) ([]*TriggerDefinition, error)
	ListActionDefinitions(ctx context.Context, integrationID string) ([]*ActionDefinition, error)
	GetActionDefinition(ctx context.Context, integrationID, key string) (*ActionDefinition, error)
	SetTriggerConfigured(ctx context.Context, integrationID, key string, configured bool) error
}

// TriggerStore persists live trigger registrations.
type TriggerStore interface {
	CreateIntegrationTrigger(ctx context.Context, tr *IntegrationTrigger) error
	GetIntegrationTrigger(ctx context.Context, integrationID, triggerKey string) (*IntegrationTrigger, error)
	ListIntegrationTriggers(ctx context.Context, integrationID string) ([]*IntegrationTrigger, error)
	DeleteIntegrationTrigger(ctx context.Context, id string) error
}

// WorkflowStore persists workflow definitions.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, def *workflow.Definition) error
	GetWorkflow(ctx context.Context, id string) (*workflow.Definition, error)
	UpdateWorkflow(ctx context.Context, def *workflow.Definition) error
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context, organizationID string) ([]*workflow.Definition, error)
}

// RunStore persists workflow runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}

// ScheduleStore persists scheduler state.
type ScheduleStore interface {
	// UpsertSchedule inserts or replaces the schedule for a workflow.
	// A workflow has at most one schedule.
	UpsertSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, workflowID string) (*Schedule, error)
	ListActiveSchedules(ctx context.Context) ([]*Schedule, error)
	SetScheduleActive(ctx context.Context, workflowID string, active bool) error
	MarkScheduleFired(ctx context.Context, workflowID string, firedAt time.Time) error
	DeleteSchedule(ctx context.Context, workflowID string) error
}

// Store is the composite persistence surface the engine runs on.
type Store interface {
	IntegrationStore
	CatalogStore
	TriggerStore
	WorkflowStore
	RunStore
	ScheduleStore

	// Close releases the underlying resources.
	Close() error
}
