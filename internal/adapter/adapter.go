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

// Package adapter executes catalog actions against external platforms
// and normalizes every outcome into a single result shape.
package adapter

import (
	"context"
	"sync"
)

// Request is one platform call.
type Request struct {
	// Platform is the platform type, e.g. "airtable".
	Platform string

	// Action is the catalog action key, used for logging and metrics.
	Action string

	// Method is the HTTP verb.
	Method string

	// Endpoint is the endpoint template with {param} placeholders.
	Endpoint string

	// Params are the resolved action parameters. Parameters consumed
	// by the endpoint template are not sent again in the query or body.
	Params map[string]any

	// Credentials is the decrypted credential map for the integration.
	Credentials map[string]string
}

// Result is the normalized outcome of a platform call. A platform-level
// rejection (HTTP >= 400) is a Result with Success=false, not a Go
// error; errors are reserved for transport-level failures.
type Result struct {
	Success    bool
	Data       any
	Error      string
	StatusCode int
}

// Adapter executes requests against one platform.
type Adapter interface {
	Do(ctx context.Context, req *Request) (*Result, error)
}

// Registry maps platform types to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds an adapter to a platform type, replacing any previous
// binding.
func (r *Registry) Register(platform string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[platform] = a
}

// Get returns the adapter for a platform type.
func (r *Registry) Get(platform string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[platform]
	return a, ok
}
