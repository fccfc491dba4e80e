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

// Vapi: voice AI calling platform.

var vapiTriggers = []TriggerSpec{
	{
		Key:         "call.completed",
		Name:        "Call Completed",
		Description: "Fires when an outbound or inbound call ends normally",
		Category:    "voice",
		Delivery:    DeliveryWebhook,
		PayloadSample: map[string]any{
			"callId":    "call_7Ln3",
			"duration":  182,
			"endReason": "hangup",
		},
	},
	{
		Key:         "call.failed",
		Name:        "Call Failed",
		Description: "Fires when a call cannot be completed",
		Category:    "voice",
		Delivery:    DeliveryWebhook,
		PayloadSample: map[string]any{
			"callId": "call_7Ln3",
			"error":  "no-answer",
		},
	},
}

var vapiActions = []ActionSpec{
	{
		Key:            "start_call",
		Name:           "Start Call",
		Description:    "Starts an outbound call with an assistant",
		Method:         "POST",
		Endpoint:       "/call",
		RequiredFields: []string{"assistantId", "phoneNumber"},
		OptionalFields: []string{"metadata"},
		ResourceType:   "call",
	},
	{
		Key:            "get_transcript",
		Name:           "Get Transcript",
		Description:    "Fetches the transcript for a completed call",
		Method:         "GET",
		Endpoint:       "/call/{callId}/transcript",
		RequiredFields: []string{"callId"},
		Idempotent:     true,
		ResourceType:   "call",
	},
}
