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

package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
)

// ImportResult reports what an import wrote.
type ImportResult struct {
	TriggersImported int
	ActionsImported  int
}

// Importer materializes the compiled-in catalog for an integration.
type Importer struct {
	store  store.CatalogStore
	logger *slog.Logger
}

// NewImporter creates an importer writing through the given store.
func NewImporter(catalogStore store.CatalogStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: catalogStore, logger: logger}
}

// Import upserts the platform's trigger and action definitions for the
// integration. Re-importing refreshes names, descriptions, and schemas
// but leaves per-instance state (configured flags, row identity) alone.
// An unsupported platform imports nothing and is not an error.
func (i *Importer) Import(ctx context.Context, integrationID, platform string) (*ImportResult, error) {
	triggers, actions := Definitions(platform)
	result := &ImportResult{}

	for _, spec := range triggers {
		def := &store.TriggerDefinition{
			ID:            uuid.NewString(),
			IntegrationID: integrationID,
			Key:           spec.Key,
			Name:          spec.Name,
			Description:   spec.Description,
			Category:      spec.Category,
			EventType:     spec.Delivery,
			PayloadSchema: spec.PayloadSchema,
			PayloadSample: spec.PayloadSample,
		}
		if err := i.store.UpsertTriggerDefinition(ctx, def); err != nil {
			return nil, fmt.Errorf("importing trigger %q: %w", spec.Key, err)
		}
		result.TriggersImported++
	}

	for _, spec := range actions {
		def := &store.ActionDefinition{
			ID:             uuid.NewString(),
			IntegrationID:  integrationID,
			Key:            spec.Key,
			Name:           spec.Name,
			Description:    spec.Description,
			Method:         spec.Method,
			Endpoint:       spec.Endpoint,
			RequiredFields: spec.RequiredFields,
			OptionalFields: spec.OptionalFields,
			Idempotent:     spec.Idempotent,
			ResourceType:   spec.ResourceType,
		}
		if err := i.store.UpsertActionDefinition(ctx, def); err != nil {
			return nil, fmt.Errorf("importing action %q: %w", spec.Key, err)
		}
		result.ActionsImported++
	}

	i.logger.Info("catalog imported",
		"integration_id", integrationID,
		"platform", platform,
		"triggers", result.TriggersImported,
		"actions", result.ActionsImported)

	return result, nil
}
