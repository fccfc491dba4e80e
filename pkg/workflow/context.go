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

package workflow

import "strconv"

// Context holds the data available for template resolution during a run.
// It carries the identity of the run, the trigger payload, and the output
// of every completed step.
type Context struct {
	// OrganizationID is the tenant the run belongs to.
	OrganizationID string `json:"organizationId"`

	// ActorID identifies who or what started the run.
	ActorID string `json:"actorId,omitempty"`

	// TriggerSource records what initiated the run: "webhook",
	// "schedule", or "manual".
	TriggerSource string `json:"triggerSource"`

	// TriggerPayload is the event data that started the run. For
	// webhook runs this is the inbound event body; for scheduled and
	// manual runs it may carry caller-supplied parameters.
	TriggerPayload map[string]any `json:"triggerPayload,omitempty"`

	// StepOutputs maps step index to that step's output, populated as
	// steps complete. Later steps reference earlier outputs through
	// paths like stepOutputs.0.customerId.
	StepOutputs map[int]any `json:"stepOutputs,omitempty"`
}

// NewContext creates a run context with an empty output map.
func NewContext(orgID, actorID, triggerSource string, payload map[string]any) *Context {
	return &Context{
		OrganizationID: orgID,
		ActorID:        actorID,
		TriggerSource:  triggerSource,
		TriggerPayload: payload,
		StepOutputs:    make(map[int]any),
	}
}

// SetStepOutput records the output of a completed step.
func (c *Context) SetStepOutput(index int, output any) {
	if c.StepOutputs == nil {
		c.StepOutputs = make(map[int]any)
	}
	c.StepOutputs[index] = output
}

// ToMap exposes the context as the tree template references walk.
// The trigger payload is reachable both as triggerPayload.<field> and
// under the shorter trigger.<field> alias.
func (c *Context) ToMap() map[string]any {
	outputs := make(map[string]any, len(c.StepOutputs))
	for idx, out := range c.StepOutputs {
		outputs[strconv.Itoa(idx)] = out
	}

	return map[string]any{
		"organizationId": c.OrganizationID,
		"actorId":        c.ActorID,
		"triggerSource":  c.TriggerSource,
		"triggerPayload": c.TriggerPayload,
		"trigger":        c.TriggerPayload,
		"stepOutputs":    outputs,
	}
}

// Resolve walks a dotted path through the context tree. It is total:
// any missing segment returns ok=false, never a panic or an error.
// Numeric segments index into slices as well as keying maps.
func (c *Context) Resolve(path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}

	var current any = c.ToMap()
	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			val, ok := node[part]
			if !ok {
				return nil, false
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// splitPath splits a reference path like "stepOutputs.0.customerId"
// into its segments.
func splitPath(path string) []string {
	var parts []string
	var current string

	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
		} else {
			current += string(path[i])
		}
	}
	if current != "" {
		parts = append(parts, current)
	}

	return parts
}
