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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

// maxResponseBytes bounds how much of a platform response we read.
const maxResponseBytes = 10 << 20

// Compile-time interface assertion.
var _ Adapter = (*HTTPAdapter)(nil)

// HTTPAdapter executes catalog actions as HTTP calls against one
// platform's API.
type HTTPAdapter struct {
	platform string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger
}

// HTTPOptions tunes an HTTPAdapter.
type HTTPOptions struct {
	// Timeout bounds each call. Default 30s.
	Timeout time.Duration

	// RateLimit is requests per second against the platform. Zero
	// disables limiting.
	RateLimit float64

	// RateBurst is the burst allowance. Default 1 when limiting.
	RateBurst int

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client

	Logger *slog.Logger
}

// NewHTTPAdapter creates an adapter for one platform API.
func NewHTTPAdapter(platform, baseURL string, opts HTTPOptions) *HTTPAdapter {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &HTTPAdapter{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   opts.Client,
		limiter:  limiter,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// Do executes one platform call. Parameters named in the endpoint
// template fill path segments; the rest travel as query parameters for
// GET/DELETE and as a JSON body otherwise.
func (a *HTTPAdapter) Do(ctx context.Context, req *Request) (*Result, error) {
	started := time.Now()

	if a.limiter != nil {
		// Tokens only observes; Wait below is the sole consumer, so a
		// dispatch spends exactly one token.
		if a.limiter.Tokens() < 1 {
			rateLimitWaits.WithLabelValues(a.platform).Inc()
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, &errors.AdapterError{
				Platform: a.platform,
				Action:   req.Action,
				Message:  "rate limiter wait aborted",
				Cause:    err,
			}
		}
	}

	path, remaining, err := expandEndpoint(req.Endpoint, req.Params)
	if err != nil {
		return nil, &errors.AdapterError{
			Platform: a.platform,
			Action:   req.Action,
			Message:  err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	httpReq, err := a.buildRequest(ctx, req, path, remaining)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		recordDispatch(a.platform, req.Action, "transport_error", time.Since(started).Seconds())
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &errors.TimeoutError{
				Operation: fmt.Sprintf("%s %s", a.platform, req.Action),
				Duration:  a.timeout,
				Cause:     err,
			}
		}
		return nil, &errors.AdapterError{
			Platform: a.platform,
			Action:   req.Action,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		recordDispatch(a.platform, req.Action, "transport_error", time.Since(started).Seconds())
		return nil, &errors.AdapterError{
			Platform:   a.platform,
			Action:     req.Action,
			StatusCode: resp.StatusCode,
			Message:    "reading response body",
			Cause:      err,
		}
	}

	data := decodeBody(body)
	result := &Result{Data: data, StatusCode: resp.StatusCode}

	if resp.StatusCode >= 400 {
		result.Error = platformMessage(data, resp.StatusCode)
		recordDispatch(a.platform, req.Action, "platform_error", time.Since(started).Seconds())
		a.logger.Warn("platform rejected call",
			"platform", a.platform,
			"action", req.Action,
			"status", resp.StatusCode)
		return result, nil
	}

	result.Success = true
	recordDispatch(a.platform, req.Action, "success", time.Since(started).Seconds())
	return result, nil
}

func (a *HTTPAdapter) buildRequest(ctx context.Context, req *Request, path string, params map[string]any) (*http.Request, error) {
	fullURL := a.baseURL + path
	method := strings.ToUpper(req.Method)

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		if len(params) > 0 {
			values := url.Values{}
			for k, v := range params {
				values.Set(k, paramString(v))
			}
			fullURL += "?" + values.Encode()
		}
	default:
		if len(params) > 0 {
			data, err := json.Marshal(params)
			if err != nil {
				return nil, &errors.AdapterError{
					Platform: a.platform,
					Action:   req.Action,
					Message:  "encoding request body",
					Cause:    err,
				}
			}
			body = bytes.NewReader(data)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &errors.AdapterError{
			Platform: a.platform,
			Action:   req.Action,
			Message:  "building request",
			Cause:    err,
		}
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	applyAuth(httpReq, req.Credentials)

	return httpReq, nil
}

// applyAuth maps the decrypted credential shape onto request headers.
// Bearer tokens cover most platforms; a custom header name or basic
// auth pair overrides when present.
func applyAuth(req *http.Request, creds map[string]string) {
	if creds == nil {
		return
	}

	if user, ok := creds["username"]; ok {
		req.SetBasicAuth(user, creds["password"])
		return
	}

	key := creds["api_key"]
	if key == "" {
		key = creds["token"]
	}
	if key == "" {
		return
	}

	if header, ok := creds["api_key_header"]; ok && header != "" {
		req.Header.Set(header, key)
		return
	}
	req.Header.Set("Authorization", "Bearer "+key)
}

// expandEndpoint fills {param} placeholders from params, returning the
// expanded path and the params that were not consumed.
func expandEndpoint(endpoint string, params map[string]any) (string, map[string]any, error) {
	remaining := make(map[string]any, len(params))
	for k, v := range params {
		remaining[k] = v
	}

	var b strings.Builder
	rest := endpoint
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.Index(rest[open:], "}")
		if close < 0 {
			b.WriteString(rest)
			break
		}
		close += open

		b.WriteString(rest[:open])
		name := rest[open+1 : close]

		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("endpoint parameter %q not provided", name)
		}
		b.WriteString(url.PathEscape(paramString(value)))
		delete(remaining, name)

		rest = rest[close+1:]
	}

	return b.String(), remaining, nil
}

// paramString renders a parameter for a path or query position.
func paramString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// decodeBody parses a response body as JSON, falling back to a raw
// string wrapper for non-JSON payloads.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return map[string]any{"raw": string(body)}
	}
	return data
}

// platformMessage digs a human-readable error out of a rejection body.
func platformMessage(data any, statusCode int) string {
	if m, ok := data.(map[string]any); ok {
		for _, key := range []string{"error", "message", "detail"} {
			switch v := m[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
	}
	return fmt.Sprintf("platform returned status %d", statusCode)
}
