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

// Airtable: tabular data platform.

var airtableTriggers = []TriggerSpec{
	{
		Key:         "record.created",
		Name:        "Record Created",
		Description: "Fires when a record appears in the watched table",
		Category:    "data",
		Delivery:    DeliveryPolling,
		PayloadSample: map[string]any{
			"recordId": "recAb12Cd34",
			"tableId":  "tblXy98",
			"fields":   map[string]any{"Name": "New row"},
		},
	},
}

var airtableActions = []ActionSpec{
	{
		Key:            "create_record",
		Name:           "Create Record",
		Description:    "Creates a record in a table",
		Method:         "POST",
		Endpoint:       "/v0/{baseId}/{tableId}",
		RequiredFields: []string{"baseId", "tableId", "fields"},
		ResourceType:   "record",
	},
	{
		Key:            "update_record",
		Name:           "Update Record",
		Description:    "Patches fields on an existing record",
		Method:         "PATCH",
		Endpoint:       "/v0/{baseId}/{tableId}/{recordId}",
		RequiredFields: []string{"baseId", "tableId", "recordId", "fields"},
		Idempotent:     true,
		ResourceType:   "record",
	},
	{
		Key:            "list_records",
		Name:           "List Records",
		Description:    "Lists records, optionally filtered by formula",
		Method:         "GET",
		Endpoint:       "/v0/{baseId}/{tableId}",
		RequiredFields: []string{"baseId", "tableId"},
		OptionalFields: []string{"filterByFormula", "maxRecords", "view"},
		Idempotent:     true,
		ResourceType:   "record",
	},
	{
		Key:            "delete_record",
		Name:           "Delete Record",
		Description:    "Deletes a record from a table",
		Method:         "DELETE",
		Endpoint:       "/v0/{baseId}/{tableId}/{recordId}",
		RequiredFields: []string{"baseId", "tableId", "recordId"},
		Idempotent:     true,
		ResourceType:   "record",
	},
}
