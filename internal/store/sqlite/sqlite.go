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

// Package sqlite provides a SQLite store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// New opens the database, configures pragmas, and runs migrations.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so keep a single connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}

	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *Store) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS integrations (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			platform_type TEXT NOT NULL,
			name TEXT NOT NULL,
			credentials_blob TEXT,
			status TEXT NOT NULL,
			enabled INTEGER DEFAULT 1,
			metadata TEXT,
			last_error TEXT,
			last_tested_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_integrations_org ON integrations(organization_id)`,
		`CREATE TABLE IF NOT EXISTS trigger_definitions (
			id TEXT PRIMARY KEY,
			integration_id TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT,
			description TEXT,
			category TEXT,
			event_type TEXT,
			is_configured INTEGER DEFAULT 0,
			payload_schema TEXT,
			payload_sample TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (integration_id, key),
			FOREIGN KEY (integration_id) REFERENCES integrations(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS action_definitions (
			id TEXT PRIMARY KEY,
			integration_id TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT,
			description TEXT,
			method TEXT,
			endpoint TEXT,
			required_fields TEXT,
			optional_fields TEXT,
			idempotent INTEGER DEFAULT 0,
			resource_type TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (integration_id, key),
			FOREIGN KEY (integration_id) REFERENCES integrations(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS integration_triggers (
			id TEXT PRIMARY KEY,
			integration_id TEXT NOT NULL,
			trigger_key TEXT NOT NULL,
			webhook_path TEXT NOT NULL,
			secret TEXT,
			active INTEGER DEFAULT 1,
			config TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (integration_id, trigger_key),
			FOREIGN KEY (integration_id) REFERENCES integrations(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			trigger_type TEXT NOT NULL,
			trigger_config TEXT,
			steps TEXT NOT NULL,
			owner_id TEXT,
			enabled INTEGER DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_org ON workflows(organization_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			status TEXT NOT NULL,
			trigger_source TEXT,
			actor_id TEXT,
			trigger_payload TEXT,
			step_results TEXT,
			error TEXT,
			started_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL UNIQUE,
			frequency TEXT,
			cron_expr TEXT NOT NULL,
			timezone TEXT,
			active INTEGER DEFAULT 1,
			last_fired_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateIntegration inserts a new integration.
func (s *Store) CreateIntegration(ctx context.Context, in *store.Integration) error {
	metadata, err := marshalJSON(in.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO integrations (id, organization_id, platform_type, name, credentials_blob,
			status, enabled, metadata, last_error, last_tested_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		in.ID, in.OrganizationID, in.PlatformType, in.Name, nullString(in.CredentialsBlob),
		in.Status, boolToInt(in.Enabled), metadata,
		nullString(in.LastError), formatTimePtr(in.LastTestedAt),
		formatTime(in.CreatedAt), formatTime(in.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

// GetIntegration retrieves an integration by ID.
func (s *Store) GetIntegration(ctx context.Context, id string) (*store.Integration, error) {
	query := `
		SELECT id, organization_id, platform_type, name, credentials_blob,
			status, enabled, metadata, last_error, last_tested_at, created_at, updated_at
		FROM integrations WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	in, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "integration", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return in, nil
}

// UpdateIntegration replaces a stored integration.
func (s *Store) UpdateIntegration(ctx context.Context, in *store.Integration) error {
	metadata, err := marshalJSON(in.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE integrations
		SET organization_id = ?, platform_type = ?, name = ?, credentials_blob = ?,
			status = ?, enabled = ?, metadata = ?, last_error = ?, last_tested_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		in.OrganizationID, in.PlatformType, in.Name, nullString(in.CredentialsBlob),
		in.Status, boolToInt(in.Enabled), metadata,
		nullString(in.LastError), formatTimePtr(in.LastTestedAt),
		formatTime(time.Now()), in.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration: %w", err)
	}
	return requireRow(res, "integration", in.ID)
}

// DeleteIntegration removes an integration; catalog rows and trigger
// registrations cascade.
func (s *Store) DeleteIntegration(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM integrations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	return requireRow(res, "integration", id)
}

// ListIntegrations returns the organization's integrations sorted by name.
func (s *Store) ListIntegrations(ctx context.Context, organizationID string) ([]*store.Integration, error) {
	query := `
		SELECT id, organization_id, platform_type, name, credentials_blob,
			status, enabled, metadata, last_error, last_tested_at, created_at, updated_at
		FROM integrations WHERE organization_id = ? ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var out []*store.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// UpsertTriggerDefinition inserts or refreshes a trigger definition.
// The conflict branch deliberately leaves is_configured and created_at alone.
func (s *Store) UpsertTriggerDefinition(ctx context.Context, def *store.TriggerDefinition) error {
	sample, err := marshalJSON(def.PayloadSample)
	if err != nil {
		return fmt.Errorf("failed to marshal payload sample: %w", err)
	}
	schema, err := marshalJSON(def.PayloadSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal payload schema: %w", err)
	}

	query := `
		INSERT INTO trigger_definitions (id, integration_id, key, name, description,
			category, event_type, is_configured, payload_schema, payload_sample, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (integration_id, key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			event_type = excluded.event_type,
			payload_schema = excluded.payload_schema,
			payload_sample = excluded.payload_sample,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, query,
		def.ID, def.IntegrationID, def.Key, def.Name, def.Description,
		def.Category, def.EventType, boolToInt(def.IsConfigured), schema, sample, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trigger definition: %w", err)
	}
	return nil
}

// UpsertActionDefinition inserts or refreshes an action definition.
func (s *Store) UpsertActionDefinition(ctx context.Context, def *store.ActionDefinition) error {
	required, err := marshalJSON(def.RequiredFields)
	if err != nil {
		return fmt.Errorf("failed to marshal required fields: %w", err)
	}
	optional, err := marshalJSON(def.OptionalFields)
	if err != nil {
		return fmt.Errorf("failed to marshal optional fields: %w", err)
	}

	query := `
		INSERT INTO action_definitions (id, integration_id, key, name, description,
			method, endpoint, required_fields, optional_fields, idempotent, resource_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (integration_id, key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			method = excluded.method,
			endpoint = excluded.endpoint,
			required_fields = excluded.required_fields,
			optional_fields = excluded.optional_fields,
			idempotent = excluded.idempotent,
			resource_type = excluded.resource_type,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, query,
		def.ID, def.IntegrationID, def.Key, def.Name, def.Description,
		def.Method, def.Endpoint, required, optional,
		boolToInt(def.Idempotent), nullString(def.ResourceType), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert action definition: %w", err)
	}
	return nil
}

// ListTriggerDefinitions returns an integration's trigger catalog.
func (s *Store) ListTriggerDefinitions(ctx context.Context, integrationID string) ([]*store.TriggerDefinition, error) {
	query := `
		SELECT id, integration_id, key, name, description, category, event_type,
			is_configured, payload_schema, payload_sample, created_at, updated_at
		FROM trigger_definitions WHERE integration_id = ? ORDER BY key
	`
	rows, err := s.db.QueryContext(ctx, query, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger definitions: %w", err)
	}
	defer rows.Close()

	var out []*store.TriggerDefinition
	for rows.Next() {
		var def store.TriggerDefinition
		var configured int
		var schema, sample sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&def.ID, &def.IntegrationID, &def.Key, &def.Name, &def.Description,
			&def.Category, &def.EventType, &configured, &schema, &sample, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trigger definition: %w", err)
		}
		def.IsConfigured = configured != 0
		if schema.Valid {
			if err := json.Unmarshal([]byte(schema.String), &def.PayloadSchema); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload schema: %w", err)
			}
		}
		if sample.Valid {
			if err := json.Unmarshal([]byte(sample.String), &def.PayloadSample); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload sample: %w", err)
			}
		}
		def.CreatedAt = parseTime(createdAt)
		def.UpdatedAt = parseTime(updatedAt)
		out = append(out, &def)
	}
	return out, rows.Err()
}

// ListActionDefinitions returns an integration's action catalog.
func (s *Store) ListActionDefinitions(ctx context.Context, integrationID string) ([]*store.ActionDefinition, error) {
	query := `
		SELECT id, integration_id, key, name, description, method, endpoint,
			required_fields, optional_fields, idempotent, resource_type, created_at, updated_at
		FROM action_definitions WHERE integration_id = ? ORDER BY key
	`
	rows, err := s.db.QueryContext(ctx, query, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action definitions: %w", err)
	}
	defer rows.Close()

	var out []*store.ActionDefinition
	for rows.Next() {
		def, err := scanActionDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// GetActionDefinition retrieves one action definition by key.
func (s *Store) GetActionDefinition(ctx context.Context, integrationID, key string) (*store.ActionDefinition, error) {
	query := `
		SELECT id, integration_id, key, name, description, method, endpoint,
			required_fields, optional_fields, idempotent, resource_type, created_at, updated_at
		FROM action_definitions WHERE integration_id = ? AND key = ?
	`
	row := s.db.QueryRowContext(ctx, query, integrationID, key)
	def, err := scanActionDefinition(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "action", ID: key}
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

// SetTriggerConfigured flips the configured flag on a trigger definition.
func (s *Store) SetTriggerConfigured(ctx context.Context, integrationID, key string, configured bool) error {
	query := `
		UPDATE trigger_definitions SET is_configured = ?, updated_at = ?
		WHERE integration_id = ? AND key = ?
	`
	res, err := s.db.ExecContext(ctx, query, boolToInt(configured), formatTime(time.Now()), integrationID, key)
	if err != nil {
		return fmt.Errorf("failed to set trigger configured: %w", err)
	}
	return requireRow(res, "trigger", key)
}

// CreateIntegrationTrigger inserts a live trigger registration.
func (s *Store) CreateIntegrationTrigger(ctx context.Context, tr *store.IntegrationTrigger) error {
	config, err := marshalJSON(tr.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	query := `
		INSERT INTO integration_triggers (id, integration_id, trigger_key, webhook_path,
			secret, active, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		tr.ID, tr.IntegrationID, tr.TriggerKey, tr.WebhookPath,
		nullString(tr.Secret), boolToInt(tr.Active), config,
		formatTime(tr.CreatedAt), formatTime(tr.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create integration trigger: %w", err)
	}
	return nil
}

// GetIntegrationTrigger retrieves a registration by integration and key.
func (s *Store) GetIntegrationTrigger(ctx context.Context, integrationID, triggerKey string) (*store.IntegrationTrigger, error) {
	query := `
		SELECT id, integration_id, trigger_key, webhook_path, secret, active, config, created_at, updated_at
		FROM integration_triggers WHERE integration_id = ? AND trigger_key = ?
	`
	row := s.db.QueryRowContext(ctx, query, integrationID, triggerKey)
	tr, err := scanIntegrationTrigger(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "integration trigger", ID: integrationID + "/" + triggerKey}
	}
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// ListIntegrationTriggers returns an integration's registrations.
func (s *Store) ListIntegrationTriggers(ctx context.Context, integrationID string) ([]*store.IntegrationTrigger, error) {
	query := `
		SELECT id, integration_id, trigger_key, webhook_path, secret, active, config, created_at, updated_at
		FROM integration_triggers WHERE integration_id = ? ORDER BY trigger_key
	`
	rows, err := s.db.QueryContext(ctx, query, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integration triggers: %w", err)
	}
	defer rows.Close()

	var out []*store.IntegrationTrigger
	for rows.Next() {
		tr, err := scanIntegrationTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// DeleteIntegrationTrigger removes a registration by ID.
func (s *Store) DeleteIntegrationTrigger(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM integration_triggers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete integration trigger: %w", err)
	}
	return requireRow(res, "integration trigger", id)
}

// CreateWorkflow inserts a new workflow definition.
func (s *Store) CreateWorkflow(ctx context.Context, def *workflow.Definition) error {
	steps, err := marshalJSON(def.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	triggerConfig, err := marshalJSON(def.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	query := `
		INSERT INTO workflows (id, organization_id, name, description, trigger_type,
			trigger_config, steps, owner_id, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		def.ID, def.OrganizationID, def.Name, nullString(def.Description),
		string(def.TriggerType), triggerConfig, steps, nullString(def.OwnerID),
		boolToInt(def.Enabled), formatTime(def.CreatedAt), formatTime(def.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow definition by ID.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Definition, error) {
	query := `
		SELECT id, organization_id, name, description, trigger_type, trigger_config,
			steps, owner_id, enabled, created_at, updated_at
		FROM workflows WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	def, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

// UpdateWorkflow replaces a stored workflow definition.
func (s *Store) UpdateWorkflow(ctx context.Context, def *workflow.Definition) error {
	steps, err := marshalJSON(def.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	triggerConfig, err := marshalJSON(def.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	query := `
		UPDATE workflows
		SET organization_id = ?, name = ?, description = ?, trigger_type = ?,
			trigger_config = ?, steps = ?, owner_id = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		def.OrganizationID, def.Name, nullString(def.Description), string(def.TriggerType),
		triggerConfig, steps, nullString(def.OwnerID), boolToInt(def.Enabled),
		formatTime(time.Now()), def.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return requireRow(res, "workflow", def.ID)
}

// DeleteWorkflow removes a workflow and its schedule.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if err := requireRow(res, "workflow", id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE workflow_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete workflow schedule: %w", err)
	}
	return nil
}

// ListWorkflows returns the organization's workflows sorted by name.
func (s *Store) ListWorkflows(ctx context.Context, organizationID string) ([]*workflow.Definition, error) {
	query := `
		SELECT id, organization_id, name, description, trigger_type, trigger_config,
			steps, owner_id, enabled, created_at, updated_at
		FROM workflows WHERE organization_id = ? ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Definition
	for rows.Next() {
		def, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// CreateRun inserts a new run.
func (s *Store) CreateRun(ctx context.Context, run *store.Run) error {
	payload, err := marshalJSON(run.TriggerPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}
	results, err := marshalJSON(run.StepResults)
	if err != nil {
		return fmt.Errorf("failed to marshal step results: %w", err)
	}

	query := `
		INSERT INTO runs (id, workflow_id, organization_id, status, trigger_source, actor_id,
			trigger_payload, step_results, error, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.WorkflowID, run.OrganizationID, string(run.Status),
		nullString(run.TriggerSource), nullString(run.ActorID), payload, results, nullString(run.Error),
		formatTimePtr(run.StartedAt), formatTimePtr(run.CompletedAt),
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*store.Run, error) {
	query := `
		SELECT id, workflow_id, organization_id, status, trigger_source, actor_id, trigger_payload,
			step_results, error, started_at, completed_at, created_at, updated_at
		FROM runs WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateRun replaces a stored run.
func (s *Store) UpdateRun(ctx context.Context, run *store.Run) error {
	payload, err := marshalJSON(run.TriggerPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}
	results, err := marshalJSON(run.StepResults)
	if err != nil {
		return fmt.Errorf("failed to marshal step results: %w", err)
	}

	query := `
		UPDATE runs
		SET status = ?, trigger_source = ?, actor_id = ?, trigger_payload = ?, step_results = ?,
			error = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(run.Status), nullString(run.TriggerSource), nullString(run.ActorID), payload, results,
		nullString(run.Error), formatTimePtr(run.StartedAt), formatTimePtr(run.CompletedAt),
		formatTime(time.Now()), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return requireRow(res, "run", run.ID)
}

// ListRuns returns runs matching the filter, newest first.
func (s *Store) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	query := `
		SELECT id, workflow_id, organization_id, status, trigger_source, actor_id, trigger_payload,
			step_results, error, started_at, completed_at, created_at, updated_at
		FROM runs WHERE 1=1
	`
	var args []any
	if filter.WorkflowID != "" {
		query += " AND workflow_id = ?"
		args = append(args, filter.WorkflowID)
	}
	if filter.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filter.OrganizationID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// UpsertSchedule inserts or replaces the schedule for a workflow.
// The conflict branch keeps created_at and last_fired_at.
func (s *Store) UpsertSchedule(ctx context.Context, sched *store.Schedule) error {
	query := `
		INSERT INTO schedules (id, workflow_id, frequency, cron_expr, timezone, active,
			last_fired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workflow_id) DO UPDATE SET
			frequency = excluded.frequency,
			cron_expr = excluded.cron_expr,
			timezone = excluded.timezone,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, query,
		sched.ID, sched.WorkflowID, sched.Frequency, sched.CronExpr, nullString(sched.Timezone),
		boolToInt(sched.Active), formatTimePtr(sched.LastFiredAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves the schedule for a workflow.
func (s *Store) GetSchedule(ctx context.Context, workflowID string) (*store.Schedule, error) {
	query := `
		SELECT id, workflow_id, frequency, cron_expr, timezone, active, last_fired_at, created_at, updated_at
		FROM schedules WHERE workflow_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, workflowID)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "schedule", ID: workflowID}
	}
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// ListActiveSchedules returns every active schedule.
func (s *Store) ListActiveSchedules(ctx context.Context) ([]*store.Schedule, error) {
	query := `
		SELECT id, workflow_id, frequency, cron_expr, timezone, active, last_fired_at, created_at, updated_at
		FROM schedules WHERE active = 1 ORDER BY workflow_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var out []*store.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

// SetScheduleActive flips a schedule's active flag.
func (s *Store) SetScheduleActive(ctx context.Context, workflowID string, active bool) error {
	query := "UPDATE schedules SET active = ?, updated_at = ? WHERE workflow_id = ?"
	res, err := s.db.ExecContext(ctx, query, boolToInt(active), formatTime(time.Now()), workflowID)
	if err != nil {
		return fmt.Errorf("failed to set schedule active: %w", err)
	}
	return requireRow(res, "schedule", workflowID)
}

// MarkScheduleFired records the last fire time.
func (s *Store) MarkScheduleFired(ctx context.Context, workflowID string, firedAt time.Time) error {
	query := "UPDATE schedules SET last_fired_at = ?, updated_at = ? WHERE workflow_id = ?"
	res, err := s.db.ExecContext(ctx, query, formatTime(firedAt), formatTime(time.Now()), workflowID)
	if err != nil {
		return fmt.Errorf("failed to mark schedule fired: %w", err)
	}
	return requireRow(res, "schedule", workflowID)
}

// DeleteSchedule removes the schedule for a workflow.
func (s *Store) DeleteSchedule(ctx context.Context, workflowID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE workflow_id = ?", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return requireRow(res, "schedule", workflowID)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row scanner) (*store.Integration, error) {
	var in store.Integration
	var blob, metadata, lastError, lastTestedAt sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := row.Scan(&in.ID, &in.OrganizationID, &in.PlatformType, &in.Name, &blob,
		&in.Status, &enabled, &metadata, &lastError, &lastTestedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	in.CredentialsBlob = blob.String
	in.Enabled = enabled != 0
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &in.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	in.LastError = lastError.String
	in.LastTestedAt = parseTimePtr(lastTestedAt)
	in.CreatedAt = parseTime(createdAt)
	in.UpdatedAt = parseTime(updatedAt)
	return &in, nil
}

func scanActionDefinition(row scanner) (*store.ActionDefinition, error) {
	var def store.ActionDefinition
	var required, optional, resourceType sql.NullString
	var idempotent int
	var createdAt, updatedAt string

	err := row.Scan(&def.ID, &def.IntegrationID, &def.Key, &def.Name, &def.Description,
		&def.Method, &def.Endpoint, &required, &optional, &idempotent, &resourceType, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	def.Idempotent = idempotent != 0
	def.ResourceType = resourceType.String

	if required.Valid {
		if err := json.Unmarshal([]byte(required.String), &def.RequiredFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal required fields: %w", err)
		}
	}
	if optional.Valid {
		if err := json.Unmarshal([]byte(optional.String), &def.OptionalFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal optional fields: %w", err)
		}
	}
	def.CreatedAt = parseTime(createdAt)
	def.UpdatedAt = parseTime(updatedAt)
	return &def, nil
}

func scanIntegrationTrigger(row scanner) (*store.IntegrationTrigger, error) {
	var tr store.IntegrationTrigger
	var secret, config sql.NullString
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&tr.ID, &tr.IntegrationID, &tr.TriggerKey, &tr.WebhookPath,
		&secret, &active, &config, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	tr.Secret = secret.String
	tr.Active = active != 0
	if config.Valid {
		if err := json.Unmarshal([]byte(config.String), &tr.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}
	tr.CreatedAt = parseTime(createdAt)
	tr.UpdatedAt = parseTime(updatedAt)
	return &tr, nil
}

func scanWorkflow(row scanner) (*workflow.Definition, error) {
	var def workflow.Definition
	var description, triggerConfig, ownerID sql.NullString
	var triggerType, steps string
	var enabled int
	var createdAt, updatedAt string

	err := row.Scan(&def.ID, &def.OrganizationID, &def.Name, &description, &triggerType,
		&triggerConfig, &steps, &ownerID, &enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	def.Description = description.String
	def.TriggerType = workflow.TriggerType(triggerType)
	def.OwnerID = ownerID.String
	def.Enabled = enabled != 0
	if triggerConfig.Valid {
		if err := json.Unmarshal([]byte(triggerConfig.String), &def.TriggerConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(steps), &def.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	def.CreatedAt = parseTime(createdAt)
	def.UpdatedAt = parseTime(updatedAt)
	return &def, nil
}

func scanRun(row scanner) (*store.Run, error) {
	var run store.Run
	var status string
	var triggerSource, actorID, payload, results, runErr, startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&run.ID, &run.WorkflowID, &run.OrganizationID, &status, &triggerSource,
		&actorID, &payload, &results, &runErr, &startedAt, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	run.Status = workflow.RunStatus(status)
	run.TriggerSource = triggerSource.String
	run.ActorID = actorID.String
	run.Error = runErr.String
	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &run.TriggerPayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
		}
	}
	if results.Valid {
		if err := json.Unmarshal([]byte(results.String), &run.StepResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
		}
	}
	run.StartedAt = parseTimePtr(startedAt)
	run.CompletedAt = parseTimePtr(completedAt)
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	return &run, nil
}

func scanSchedule(row scanner) (*store.Schedule, error) {
	var sched store.Schedule
	var active int
	var timezone, lastFiredAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&sched.ID, &sched.WorkflowID, &sched.Frequency, &sched.CronExpr,
		&timezone, &active, &lastFiredAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sched.Timezone = timezone.String
	sched.Active = active != 0
	sched.LastFiredAt = parseTimePtr(lastFiredAt)
	sched.CreatedAt = parseTime(createdAt)
	sched.UpdatedAt = parseTime(updatedAt)
	return &sched, nil
}

// requireRow converts a zero-row result into a NotFoundError.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return &errors.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

// marshalJSON marshals v, returning nil for empty values so the column
// stays NULL.
func marshalJSON(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
