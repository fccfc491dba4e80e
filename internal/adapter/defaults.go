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

package adapter

import "github.com/inqbatorchris/aimee-sub008/internal/catalog"

// defaultBaseURLs are the production API roots per platform.
var defaultBaseURLs = map[string]string{
	catalog.PlatformHighLevel: "https://services.leadconnectorhq.com",
	catalog.PlatformVapi:      "https://api.vapi.ai",
	catalog.PlatformAirtable:  "https://api.airtable.com",
	catalog.PlatformOpenAI:    "https://api.openai.com",
}

// DefaultRegistry builds a registry with an HTTP adapter for every
// supported platform, sharing the given options.
func DefaultRegistry(opts HTTPOptions) *Registry {
	r := NewRegistry()
	for _, platform := range catalog.Platforms() {
		r.Register(platform, NewHTTPAdapter(platform, defaultBaseURLs[platform], opts))
	}
	return r
}
