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

// HighLevel: billing and CRM platform.

var highlevelTriggers = []TriggerSpec{
	{
		Key:         "contact.created",
		Name:        "Contact Created",
		Description: "Fires when a new contact is added to the location",
		Category:    "crm",
		Delivery:    DeliveryWebhook,
		PayloadSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"contactId": map[string]any{"type": "string"},
				"email":     map[string]any{"type": "string"},
				"name":      map[string]any{"type": "string"},
			},
			"required": []string{"contactId"},
		},
		PayloadSample: map[string]any{
			"contactId": "con_8Zx1",
			"email":     "jo@example.com",
			"name":      "Jo Example",
		},
	},
	{
		Key:         "invoice.paid",
		Name:        "Invoice Paid",
		Description: "Fires when an invoice is marked paid",
		Category:    "billing",
		Delivery:    DeliveryWebhook,
		PayloadSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"invoiceId": map[string]any{"type": "string"},
				"contactId": map[string]any{"type": "string"},
				"amount":    map[string]any{"type": "number"},
				"currency":  map[string]any{"type": "string"},
			},
			"required": []string{"invoiceId", "amount"},
		},
		PayloadSample: map[string]any{
			"invoiceId": "inv_4Ya7",
			"contactId": "con_8Zx1",
			"amount":    1500,
			"currency":  "USD",
		},
	},
	{
		Key:         "appointment.upcoming",
		Name:        "Appointment Upcoming",
		Description: "Fires ahead of a scheduled appointment",
		Category:    "calendar",
		Delivery:    DeliveryPolling,
		PayloadSample: map[string]any{
			"appointmentId": "apt_2Qc9",
			"contactId":     "con_8Zx1",
			"startsAt":      "2025-07-01T14:00:00Z",
		},
	},
}

var highlevelActions = []ActionSpec{
	{
		Key:            "create_contact",
		Name:           "Create Contact",
		Description:    "Creates a contact in the location",
		Method:         "POST",
		Endpoint:       "/contacts",
		RequiredFields: []string{"email"},
		OptionalFields: []string{"name", "phone", "tags"},
		ResourceType:   "contact",
	},
	{
		Key:            "update_opportunity",
		Name:           "Update Opportunity",
		Description:    "Updates an opportunity's stage or value",
		Method:         "PUT",
		Endpoint:       "/opportunities/{opportunityId}",
		RequiredFields: []string{"opportunityId"},
		OptionalFields: []string{"stage", "value", "status"},
		Idempotent:     true,
		ResourceType:   "opportunity",
	},
	{
		Key:            "send_invoice",
		Name:           "Send Invoice",
		Description:    "Creates and sends an invoice to a contact",
		Method:         "POST",
		Endpoint:       "/invoices",
		RequiredFields: []string{"contactId", "amount"},
		OptionalFields: []string{"currency", "dueDate", "memo"},
		ResourceType:   "invoice",
	},
	{
		Key:            "search_contacts",
		Name:           "Search Contacts",
		Description:    "Searches contacts by filter clauses",
		Method:         "GET",
		Endpoint:       "/contacts/search",
		OptionalFields: []string{"query", "limit"},
		Idempotent:     true,
		ResourceType:   "contact",
	},
}
