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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed data, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "integration", "run")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid
// config values. Configuration errors are fatal at startup; the daemon
// refuses to run with them rather than failing lazily mid-request.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "vault.secret")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// CredentialError represents a failure to decrypt or decode stored
// credentials. Callers should treat this as "prompt for the integration's
// credentials again", never as a reason to crash.
type CredentialError struct {
	// Reason is the human-readable error description
	Reason string

	// Malformed is true when the stored blob has an invalid structure
	// (bad encoding, missing fields) as opposed to an integrity or
	// key-mismatch failure on a structurally valid blob.
	Malformed bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
// Security: never includes plaintext or key material.
func (e *CredentialError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("credential error: malformed blob: %s", e.Reason)
	}
	return fmt.Sprintf("credential error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CredentialError) Unwrap() error {
	return e.Cause
}

// AdapterError represents a failure from a vendor platform call.
// Use this for network failures, vendor-side errors, and timeouts surfaced
// by an adapter. Adapter errors look transient and are governed by the
// workflow's per-step continuation policy; the core never retries them.
type AdapterError struct {
	// Platform is the platform type that produced the error (e.g., "airtable")
	Platform string

	// Action is the action key that was being dispatched
	Action string

	// StatusCode is the HTTP status code, if the call got that far
	StatusCode int

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("adapter %s error", e.Platform)
	if e.Action != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Action)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "adapter dispatch")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
