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

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
)

// ActionContract is the catalog's answer for a step type: how the
// action is invoked and which parameters it demands.
type ActionContract struct {
	// Key is the action identifier, e.g. "create_contact".
	Key string

	// IntegrationID is the integration the contract was resolved against.
	IntegrationID string

	// Platform is the platform type the integration connects to.
	Platform string

	// Method is the HTTP verb for the platform call.
	Method string

	// Endpoint is the endpoint template, possibly containing {param}
	// placeholders filled from the step parameters.
	Endpoint string

	// RequiredFields lists parameters that must be present and resolved
	// before dispatch.
	RequiredFields []string

	// OptionalFields lists parameters the action accepts beyond the
	// required set.
	OptionalFields []string
}

// ActionResolver looks up action contracts from the capability catalog.
type ActionResolver interface {
	// ResolveAction returns the contract for an action key on an
	// integration. A missing action returns *errors.NotFoundError.
	ResolveAction(ctx context.Context, integrationID, key string) (*ActionContract, error)
}

// DispatchResult is the normalized outcome of one platform call.
type DispatchResult struct {
	Success    bool
	Data       any
	Error      string
	StatusCode int
}

// Dispatcher performs the platform call for a resolved action.
type Dispatcher interface {
	// Dispatch executes the contract with the resolved parameters.
	// Transport-level failures return an error; platform-level failures
	// return a result with Success=false.
	Dispatch(ctx context.Context, contract *ActionContract, params map[string]any) (*DispatchResult, error)
}

// Executor runs workflow definitions step by step.
//
// Execution is strictly sequential: step N+1 never starts before step N
// finishes, because later steps may reference earlier outputs. A single
// Executor is safe for concurrent use; per-run state lives in the
// Context passed to Run.
type Executor struct {
	resolver   ActionResolver
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(resolver ActionResolver, dispatcher Dispatcher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run executes every step of the definition against the run context and
// returns the per-step results plus the final run status.
//
// Failure handling:
//   - an unknown action halts the run immediately, regardless of policy
//   - a failed step halts the run unless its OnFailure is "continue"
//   - a failed required step forces the final status to failed even
//     when the run continues to completion
//
// Steps never executed because of a halt are recorded as skipped.
func (e *Executor) Run(ctx context.Context, def *Definition, runCtx *Context) ([]StepResult, RunStatus) {
	results := make([]StepResult, 0, len(def.Steps))

	halted := false
	anyFailed := false
	requiredFailed := false

	for i, step := range def.Steps {
		if halted {
			results = append(results, StepResult{
				StepIndex: i,
				Name:      step.Name,
				Type:      step.Type,
				Status:    StepStatusSkipped,
			})
			continue
		}

		result := e.executeStep(ctx, i, step, runCtx)
		results = append(results, result)

		if result.Status == StepStatusFailed {
			anyFailed = true
			if step.Required {
				requiredFailed = true
			}
			if result.ErrorKind == ErrorKindUnknownAction || step.OnFailure != OnFailureContinue {
				halted = true
			}
			e.logger.Warn("step failed",
				"workflow_id", def.ID,
				"step_index", i,
				"error_kind", result.ErrorKind,
				"halted", halted)
		}
	}

	switch {
	case !anyFailed:
		return results, RunStatusSucceeded
	case halted || requiredFailed:
		return results, RunStatusFailed
	default:
		return results, RunStatusPartial
	}
}

// executeStep runs a single step: condition, catalog lookup, parameter
// resolution, dispatch.
func (e *Executor) executeStep(ctx context.Context, index int, step Step, runCtx *Context) StepResult {
	started := time.Now()
	result := StepResult{
		StepIndex: index,
		Name:      step.Name,
		Type:      step.Type,
		StartedAt: started,
	}

	finish := func() StepResult {
		result.CompletedAt = time.Now()
		result.DurationMs = result.CompletedAt.Sub(started).Milliseconds()
		return result
	}

	fail := func(kind, msg string) StepResult {
		result.Status = StepStatusFailed
		result.ErrorKind = kind
		result.Error = msg
		return finish()
	}

	if step.Condition != "" {
		ok, err := evaluateCondition(step.Condition, runCtx)
		if err != nil {
			return fail(ErrorKindConditionFailure, fmt.Sprintf("condition %q: %v", step.Condition, err))
		}
		if !ok {
			result.Status = StepStatusSkipped
			return finish()
		}
	}

	contract, err := e.resolver.ResolveAction(ctx, step.IntegrationID, step.Type)
	if err != nil {
		if errors.IsNotFound(err) {
			return fail(ErrorKindUnknownAction, fmt.Sprintf("no action %q for integration %s", step.Type, step.IntegrationID))
		}
		return fail(ErrorKindAdapterFailure, fmt.Sprintf("resolving action %q: %v", step.Type, err))
	}

	params, missing := ResolveParams(step.Config, runCtx)
	if len(missing) > 0 {
		return fail(ErrorKindInvalidParameters,
			fmt.Sprintf("unresolved references: %s", strings.Join(missing, ", ")))
	}

	// Presence is what's required; an explicit empty string is a value
	// the caller chose to send.
	var absent []string
	for _, field := range contract.RequiredFields {
		if v, ok := params[field]; !ok || v == nil {
			absent = append(absent, field)
		}
	}
	if len(absent) > 0 {
		return fail(ErrorKindInvalidParameters,
			fmt.Sprintf("missing required parameters: %s", strings.Join(absent, ", ")))
	}

	dispatched, err := e.dispatcher.Dispatch(ctx, contract, params)
	if err != nil {
		return fail(ErrorKindAdapterFailure, err.Error())
	}

	result.StatusCode = dispatched.StatusCode
	if !dispatched.Success {
		result.Output = dispatched.Data
		return fail(ErrorKindAdapterFailure, dispatched.Error)
	}

	result.Status = StepStatusSucceeded
	result.Output = dispatched.Data
	runCtx.SetStepOutput(index, dispatched.Data)
	return finish()
}

// evaluateCondition evaluates a step condition against the run context
// tree. The result must be a boolean.
func evaluateCondition(condition string, runCtx *Context) (bool, error) {
	program, err := expr.Compile(condition, expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile: %w", err)
	}

	out, err := expr.Run(program, runCtx.ToMap())
	if err != nil {
		return false, fmt.Errorf("evaluate: %w", err)
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to a boolean, got %T", out)
	}
	return b, nil
}
