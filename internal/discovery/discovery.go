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

// Package discovery registers live trigger endpoints for connected
// integrations.
package discovery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inqbatorchris/aimee-sub008/internal/catalog"
	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

// Service turns catalog trigger definitions into addressable trigger
// registrations.
type Service struct {
	catalog  store.CatalogStore
	triggers store.TriggerStore
	logger   *slog.Logger
}

// New creates a discovery service.
func New(catalogStore store.CatalogStore, triggerStore store.TriggerStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: catalogStore, triggers: triggerStore, logger: logger}
}

// Discover registers an IntegrationTrigger for every trigger definition
// the integration does not have one for yet, returning only the newly
// created registrations. Existing (integration, key) pairs are skipped,
// so repeated discovery is idempotent.
//
// Webhook-delivery triggers get a deterministic inbound path of the
// form /webhooks/{platform}/{integrationID}/{triggerKey} plus a fresh
// HMAC secret. Polling triggers are registered without a path.
func (s *Service) Discover(ctx context.Context, integrationID, platform string) ([]*store.IntegrationTrigger, error) {
	defs, err := s.catalog.ListTriggerDefinitions(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("listing trigger definitions: %w", err)
	}

	var created []*store.IntegrationTrigger
	for _, def := range defs {
		_, err := s.triggers.GetIntegrationTrigger(ctx, integrationID, def.Key)
		if err == nil {
			continue
		}
		if !errors.IsNotFound(err) {
			return nil, fmt.Errorf("checking trigger %q: %w", def.Key, err)
		}

		tr := &store.IntegrationTrigger{
			ID:            uuid.NewString(),
			IntegrationID: integrationID,
			TriggerKey:    def.Key,
			Active:        true,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if def.EventType == catalog.DeliveryWebhook {
			tr.WebhookPath = WebhookPath(platform, integrationID, def.Key)
			secret, err := newSecret()
			if err != nil {
				return nil, fmt.Errorf("generating secret for %q: %w", def.Key, err)
			}
			tr.Secret = secret
		}

		if err := s.triggers.CreateIntegrationTrigger(ctx, tr); err != nil {
			return nil, fmt.Errorf("registering trigger %q: %w", def.Key, err)
		}
		if err := s.catalog.SetTriggerConfigured(ctx, integrationID, def.Key, true); err != nil {
			return nil, fmt.Errorf("marking trigger %q configured: %w", def.Key, err)
		}

		created = append(created, tr)
	}

	if len(created) > 0 {
		s.logger.Info("triggers discovered",
			"integration_id", integrationID,
			"platform", platform,
			"created", len(created))
	}

	return created, nil
}

// WebhookPath builds the inbound path for a webhook trigger.
func WebhookPath(platform, integrationID, triggerKey string) string {
	return fmt.Sprintf("/webhooks/%s/%s/%s", platform, integrationID, triggerKey)
}

// newSecret generates a 32-byte hex HMAC secret.
func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
