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

// OpenAI: LLM platform. Emits no events, so there are no triggers.

var openaiActions = []ActionSpec{
	{
		Key:            "chat_completion",
		Name:           "Chat Completion",
		Description:    "Generates a chat completion",
		Method:         "POST",
		Endpoint:       "/v1/chat/completions",
		RequiredFields: []string{"model", "messages"},
		OptionalFields: []string{"temperature", "max_tokens"},
	},
	{
		Key:            "create_embedding",
		Name:           "Create Embedding",
		Description:    "Generates an embedding vector for input text",
		Method:         "POST",
		Endpoint:       "/v1/embeddings",
		RequiredFields: []string{"model", "input"},
	},
}
