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

// Package catalog holds the compiled-in capability tables for every
// supported platform and the importer that materializes them per
// integration.
package catalog

// Supported platform types.
const (
	PlatformHighLevel = "highlevel"
	PlatformVapi      = "vapi"
	PlatformAirtable  = "airtable"
	PlatformOpenAI    = "openai"
)

// Trigger delivery modes.
const (
	// DeliveryWebhook means the platform pushes events to us.
	DeliveryWebhook = "webhook"
	// DeliveryPolling means we poll the platform for new events.
	DeliveryPolling = "polling"
)

// TriggerSpec describes an event a platform can emit.
type TriggerSpec struct {
	Key           string
	Name          string
	Description   string
	Category      string
	Delivery      string
	PayloadSchema map[string]any
	PayloadSample map[string]any
}

// ActionSpec describes an operation a platform accepts.
type ActionSpec struct {
	Key            string
	Name           string
	Description    string
	Method         string
	Endpoint       string
	RequiredFields []string
	OptionalFields []string
	// Idempotent marks operations safe to repeat when a delivery retries.
	Idempotent   bool
	ResourceType string
}

// Definitions returns the compiled-in capability tables for a platform
// type. Unknown platforms return empty tables, never an error: an
// integration to a platform we have no catalog for is simply inert.
func Definitions(platform string) ([]TriggerSpec, []ActionSpec) {
	switch platform {
	case PlatformHighLevel:
		return highlevelTriggers, highlevelActions
	case PlatformVapi:
		return vapiTriggers, vapiActions
	case PlatformAirtable:
		return airtableTriggers, airtableActions
	case PlatformOpenAI:
		return nil, openaiActions
	default:
		return nil, nil
	}
}

// Platforms lists every platform type with a compiled-in catalog.
func Platforms() []string {
	return []string{PlatformHighLevel, PlatformVapi, PlatformAirtable, PlatformOpenAI}
}
