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

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// Compile-time interface assertion.
var _ workflow.ActionResolver = (*Resolver)(nil)

// Resolver serves action contracts to the executor from the persisted
// catalog.
type Resolver struct {
	catalog      store.CatalogStore
	integrations store.IntegrationStore
}

// NewResolver creates a catalog-backed action resolver.
func NewResolver(catalogStore store.CatalogStore, integrationStore store.IntegrationStore) *Resolver {
	return &Resolver{catalog: catalogStore, integrations: integrationStore}
}

// ResolveAction looks up the action definition and binds it to the
// integration's platform. A missing integration or action surfaces as
// *errors.NotFoundError from the store.
func (r *Resolver) ResolveAction(ctx context.Context, integrationID, key string) (*workflow.ActionContract, error) {
	integration, err := r.integrations.GetIntegration(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	def, err := r.catalog.GetActionDefinition(ctx, integrationID, key)
	if err != nil {
		return nil, err
	}

	return &workflow.ActionContract{
		Key:            def.Key,
		IntegrationID:  integrationID,
		Platform:       integration.PlatformType,
		Method:         def.Method,
		Endpoint:       def.Endpoint,
		RequiredFields: def.RequiredFields,
		OptionalFields: def.OptionalFields,
	}, nil
}
