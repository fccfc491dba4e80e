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
	"fmt"
	"strings"
)

// ResolveParams resolves template references in a step's config against
// the run context. It returns the resolved copy plus the list of
// references that did not resolve; the input map is never mutated.
//
// A string that is exactly one reference, like "{{stepOutputs.0.count}}",
// resolves to the referenced value with its original type preserved.
// References embedded in longer strings are stringified in place.
func ResolveParams(config map[string]any, ctx *Context) (map[string]any, []string) {
	resolved := make(map[string]any, len(config))
	var missing []string

	for key, value := range config {
		resolved[key] = resolveValue(value, ctx, &missing)
	}

	return resolved, missing
}

// resolveValue recursively resolves template references in a value.
func resolveValue(value any, ctx *Context, missing *[]string) any {
	switch v := value.(type) {
	case string:
		if ref, ok := pureTemplateRef(v); ok {
			raw, found := ctx.Resolve(ref)
			if !found {
				*missing = append(*missing, ref)
				return v
			}
			return raw
		}
		return resolveEmbedded(v, ctx, missing)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = resolveValue(val, ctx, missing)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = resolveValue(val, ctx, missing)
		}
		return out
	default:
		return value
	}
}

// resolveEmbedded substitutes every {{path}} reference inside a string,
// stringifying each resolved value.
func resolveEmbedded(s string, ctx *Context, missing *[]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			b.WriteString(rest)
			break
		}
		close += open

		b.WriteString(rest[:open])
		ref := strings.TrimSpace(rest[open+2 : close])

		raw, found := ctx.Resolve(ref)
		if !found {
			*missing = append(*missing, ref)
			// Keep the reference text so the failure is visible in output.
			b.WriteString(rest[open : close+2])
		} else {
			b.WriteString(stringify(raw))
		}

		rest = rest[close+2:]
	}

	return b.String()
}

// pureTemplateRef reports whether s is exactly one template reference
// with no surrounding text, returning the inner path.
func pureTemplateRef(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 5 || !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}

	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}

	inner = strings.TrimSpace(inner)
	if inner == "" {
		return "", false
	}
	return inner, true
}

// stringify renders a resolved value for embedding inside a string.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing ".0" so IDs survive interpolation.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
