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

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

func TestDo_PostSendsJSONBodyAndAuth(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"contactId":"con_1"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("highlevel", srv.URL, HTTPOptions{})
	result, err := a.Do(context.Background(), &Request{
		Platform:    "highlevel",
		Action:      "create_contact",
		Method:      "POST",
		Endpoint:    "/contacts",
		Params:      map[string]any{"email": "jo@example.com", "name": "Jo"},
		Credentials: map[string]string{"api_key": "sk-test"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "/contacts", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "jo@example.com", gotBody["email"])

	data := result.Data.(map[string]any)
	assert.Equal(t, "con_1", data["contactId"])
}

func TestDo_EndpointTemplateAndQuery(t *testing.T) {
	var gotPath, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("airtable", srv.URL, HTTPOptions{})
	result, err := a.Do(context.Background(), &Request{
		Action:   "list_records",
		Method:   "GET",
		Endpoint: "/v0/{baseId}/{tableId}",
		Params: map[string]any{
			"baseId":          "app123",
			"tableId":         "tbl 9",
			"filterByFormula": "{Status}='Open'",
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	// Path params consumed by the template, escaped; the rest in query.
	assert.Equal(t, "/v0/app123/tbl 9", gotPath)
	assert.Contains(t, gotQuery, "filterByFormula=")
}

func TestDo_MissingPathParam(t *testing.T) {
	a := NewHTTPAdapter("airtable", "http://unused.invalid", HTTPOptions{})

	_, err := a.Do(context.Background(), &Request{
		Action:   "update_record",
		Method:   "PATCH",
		Endpoint: "/v0/{baseId}/{tableId}/{recordId}",
		Params:   map[string]any{"baseId": "app123"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsAdapter(err))
	assert.Contains(t, err.Error(), "tableId")
}

func TestDo_PlatformRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"message":"INVALID_VALUE_FOR_COLUMN"}}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("airtable", srv.URL, HTTPOptions{})
	result, err := a.Do(context.Background(), &Request{
		Action:   "create_record",
		Method:   "POST",
		Endpoint: "/v0/app/tbl",
		Params:   map[string]any{"fields": map[string]any{}},
	})
	require.NoError(t, err, "HTTP rejections are results, not errors")

	assert.False(t, result.Success)
	assert.Equal(t, 422, result.StatusCode)
	assert.Equal(t, "INVALID_VALUE_FOR_COLUMN", result.Error)
}

func TestDo_TimeoutSurfacesTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("vapi", srv.URL, HTTPOptions{Timeout: 20 * time.Millisecond})
	_, err := a.Do(context.Background(), &Request{
		Action:   "get_transcript",
		Method:   "GET",
		Endpoint: "/call/{callId}/transcript",
		Params:   map[string]any{"callId": "call-1"},
	})
	require.Error(t, err)

	var timeoutErr *errors.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestDo_NonJSONBodyWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("openai", srv.URL, HTTPOptions{})
	result, err := a.Do(context.Background(), &Request{
		Action: "chat_completion", Method: "POST", Endpoint: "/v1/chat/completions",
	})
	require.NoError(t, err)

	data := result.Data.(map[string]any)
	assert.Equal(t, "plain text", data["raw"])
}

func TestDo_BurstCoversBackToBackCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// One token per dispatch: with burst 2 and a 1s refill, two calls in
	// a row must both draw from the burst and never block on the refill.
	a := NewHTTPAdapter("highlevel", srv.URL, HTTPOptions{RateLimit: 1, RateBurst: 2})

	started := time.Now()
	for i := 0; i < 2; i++ {
		_, err := a.Do(context.Background(), &Request{
			Action: "search_contacts", Method: "GET", Endpoint: "/contacts/search",
		})
		require.NoError(t, err)
	}
	elapsed := time.Since(started)

	assert.Less(t, elapsed, 500*time.Millisecond,
		"two calls within burst stalled %v waiting on the limiter", elapsed)
}

func TestApplyAuth(t *testing.T) {
	tests := []struct {
		name  string
		creds map[string]string
		check func(t *testing.T, r *http.Request)
	}{
		{
			name:  "bearer from api_key",
			creds: map[string]string{"api_key": "sk-1"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "Bearer sk-1", r.Header.Get("Authorization"))
			},
		},
		{
			name:  "custom header",
			creds: map[string]string{"api_key": "xyz", "api_key_header": "X-Api-Key"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "xyz", r.Header.Get("X-Api-Key"))
				assert.Empty(t, r.Header.Get("Authorization"))
			},
		},
		{
			name:  "basic auth",
			creds: map[string]string{"username": "u", "password": "p"},
			check: func(t *testing.T, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "u", user)
				assert.Equal(t, "p", pass)
			},
		},
		{
			name:  "no credentials",
			creds: nil,
			check: func(t *testing.T, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest("GET", "http://example.com", nil)
			require.NoError(t, err)
			applyAuth(r, tt.creds)
			tt.check(t, r)
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(HTTPOptions{})

	for _, platform := range []string{"highlevel", "vapi", "airtable", "openai"} {
		_, ok := r.Get(platform)
		assert.True(t, ok, "missing adapter for %s", platform)
	}

	_, ok := r.Get("salesforce")
	assert.False(t, ok)
}
